package metric

import "testing"

func TestIsValid(t *testing.T) {
	valid := []Mode{Documents, Items}
	for _, m := range valid {
		if !m.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", m)
		}
	}

	invalid := []Mode{"", "docs", "records", "DOCUMENTS"}
	for _, m := range invalid {
		if m.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", m)
		}
	}
}
