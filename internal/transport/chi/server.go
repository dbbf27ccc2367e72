// Package chi exposes grid sessions over a REST API: creating grids
// from deep links or explicit configs, running them, mutating display
// state, cell drill-down, CSV export, and the facet catalog.
package chi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	heatgrid "github.com/evidencelab/heatgrid"
	"github.com/evidencelab/heatgrid/internal/db"
	"github.com/evidencelab/heatgrid/internal/repository/catalog"
)

// ControllerFactory creates one grid controller per session.
type ControllerFactory func() (*heatgrid.Controller, error)

// Server is the HTTP API over grid sessions.
type Server struct {
	sessions      *Registry
	catalogs      *catalog.Repo
	dataSource    string
	newController ControllerFactory
	pinger        db.Pinger // nil when no cache store is configured
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// ServerConfig wires the server's collaborators.
type ServerConfig struct {
	Sessions      *Registry
	Catalogs      *catalog.Repo
	DataSource    string
	NewController ControllerFactory
	Pinger        db.Pinger
	Logger        *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		sessions:      cfg.Sessions,
		catalogs:      cfg.Catalogs,
		dataSource:    cfg.DataSource,
		newController: cfg.NewController,
		pinger:        cfg.Pinger,
		logger:        cfg.Logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Router builds the route tree. Middleware (recovery, request ids,
// request logging, metrics) is wired by the caller around this handler.
func (s *Server) Router() http.Handler {
	r := chirouter.NewRouter()

	r.Route("/v1", func(r chirouter.Router) {
		r.Post("/grids", s.createGrid)
		r.Route("/grids/{id}", func(r chirouter.Router) {
			r.Get("/", s.getGrid)
			r.Patch("/", s.patchGrid)
			r.Delete("/", s.deleteGrid)
			r.Post("/run", s.runGrid)
			r.Get("/url", s.gridURL)
			r.Get("/cells/{row}/{col}", s.cellDetail)
			r.Get("/export", s.exportGrid)
		})
		r.Get("/catalog", s.getCatalog)
		r.Get("/catalog/{field}/suggest", s.suggest)
	})
	r.Get("/healthz", s.health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// createGrid handles POST /v1/grids.
func (s *Server) createGrid(w http.ResponseWriter, r *http.Request) {
	var req createGridRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
			return
		}
	}

	ctrl, err := s.newController()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := ctrl.LoadCatalog(r.Context()); err != nil {
		ctrl.Close()
		s.handleDomainError(w, err)
		return
	}

	var autoRun bool
	switch {
	case req.URL != "":
		values, perr := url.ParseQuery(req.URL)
		if perr != nil {
			ctrl.Close()
			writeError(w, http.StatusBadRequest, "bad_request", "invalid url query: "+perr.Error())
			return
		}
		autoRun = ctrl.LoadURL(values)
	case req.Config != nil:
		autoRun = ctrl.ApplyConfiguration(req.Config.toBuilder())
	default:
		// Empty body: default grid, URL gate open immediately.
		ctrl.LoadURL(url.Values{})
	}

	session := s.sessions.Add(ctrl)
	if autoRun {
		session.StartRun(s.logger)
	}

	writeJSON(w, http.StatusCreated, gridResponse{
		ID:       session.ID,
		Snapshot: snapshotToDTO(ctrl.Snapshot()),
		URL:      ctrl.URL().Encode(),
	})
}

// getGrid handles GET /v1/grids/{id}. Mid-run it returns the partial
// snapshot with Running=true.
func (s *Server) getGrid(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gridResponse{
		ID:       session.ID,
		Snapshot: snapshotToDTO(session.Ctrl.Snapshot()),
		URL:      session.Ctrl.URL().Encode(),
	})
}

// patchGrid handles PATCH /v1/grids/{id}.
func (s *Server) patchGrid(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req patchGridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	ctrl := session.Ctrl
	if req.RowField != nil {
		if err := ctrl.SetRowField(*req.RowField); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	if req.ColField != nil {
		if err := ctrl.SetColField(*req.ColField); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	if req.Metric != nil {
		ctrl.SetMetric(heatgrid.Metric(*req.Metric))
	}
	if req.Cutoff != nil {
		ctrl.SetCutoff(*req.Cutoff)
	}
	if req.Query != nil {
		ctrl.SetQuery(*req.Query)
	}
	if req.RowQueries != nil {
		ctrl.SetRowQueries(*req.RowQueries)
	}
	for field, values := range req.Filters {
		if err := ctrl.SetFilter(field, values); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	for field, values := range req.Selections {
		if err := ctrl.SetSelection(field, values); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	for _, field := range req.ClearSelections {
		ctrl.ClearSelection(field)
	}

	writeJSON(w, http.StatusOK, gridResponse{
		ID:       session.ID,
		Snapshot: snapshotToDTO(ctrl.Snapshot()),
		URL:      ctrl.URL().Encode(),
	})
}

// deleteGrid handles DELETE /v1/grids/{id}.
func (s *Server) deleteGrid(w http.ResponseWriter, r *http.Request) {
	s.sessions.Remove(chirouter.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// runGrid handles POST /v1/grids/{id}/run. The run executes in the
// background; poll GET /v1/grids/{id} for progress.
func (s *Server) runGrid(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	session.StartRun(s.logger)
	writeJSON(w, http.StatusAccepted, runResponse{ID: session.ID, Running: true})
}

// gridURL handles GET /v1/grids/{id}/url.
func (s *Server) gridURL(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{Query: session.Ctrl.URL().Encode()})
}

// cellDetail handles GET /v1/grids/{id}/cells/{row}/{col} with optional
// org= and doc= narrowing.
func (s *Server) cellDetail(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	view, err := session.Ctrl.CellDetail(
		chirouter.URLParam(r, "row"),
		chirouter.URLParam(r, "col"),
		r.URL.Query().Get("org"),
		r.URL.Query().Get("doc"),
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cellDetailToDTO(view))
}

// exportGrid handles GET /v1/grids/{id}/export?kind=summary|detail.
func (s *Server) exportGrid(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "summary"
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="heatgrid-`+kind+`.csv"`)

	switch kind {
	case "summary":
		err = session.Ctrl.ExportSummary(w)
	case "detail":
		err = session.Ctrl.ExportDetail(w)
	default:
		w.Header().Del("Content-Disposition")
		writeError(w, http.StatusBadRequest, "bad_request", "kind must be summary or detail")
		return
	}
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

// getCatalog handles GET /v1/catalog.
func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalogs.Catalog(r.Context(), s.dataSource)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogToDTO(cat))
}

// suggest handles GET /v1/catalog/{field}/suggest?q=&limit=.
func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	values, err := s.catalogs.Suggest(
		r.Context(),
		s.dataSource,
		chirouter.URLParam(r, "field"),
		r.URL.Query().Get("q"),
		limit,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := suggestResponse{Values: make([]fieldValueDTO, 0, len(values))}
	for _, v := range values {
		resp.Values = append(resp.Values, fieldValueDTO(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// health handles GET /healthz. The cache store is optional; only a
// configured store participates in the check.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			checks["cache"] = "down"
			status = "degraded"
		} else {
			checks["cache"] = "ok"
		}
	}
	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}
