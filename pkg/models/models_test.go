package models

import "testing"

func TestField_AbsentVsEmpty(t *testing.T) {
	// An absent field and a field holding "" must stay distinguishable.
	absent := Absent()
	empty := Some("")

	if absent.Present {
		t.Error("Absent() is present")
	}
	if !empty.Present {
		t.Error(`Some("") is absent`)
	}
	if absent.Or("fallback") != "fallback" {
		t.Error("Or did not fall back for absent field")
	}
	if empty.Or("fallback") != "" {
		t.Error("Or fell back for a present empty field")
	}
}

func TestRecord_Empty(t *testing.T) {
	var nilRec *Record
	if !nilRec.Empty() {
		t.Error("nil record not empty")
	}
	if !(&Record{ParcelID: "x", SourceURL: "u"}).Empty() {
		t.Error("record with only identity fields not empty")
	}
	if (&Record{County: Some("FULTON")}).Empty() {
		t.Error("record with a county reported empty")
	}
	if (&Record{Debtors: []string{"DOE"}}).Empty() {
		t.Error("record with a party reported empty")
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := []JobStatus{StatusCompleted, StatusPartiallyFailed, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s not terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusPending, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s terminal", s)
		}
	}
}
