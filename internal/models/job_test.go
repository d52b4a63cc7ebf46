package models

import "testing"

func TestJobCanTransitionTo(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobQueued, JobRunning, true},
		{JobQueued, JobCompleted, false},
		{JobQueued, JobFailed, false},
		{JobRunning, JobCompleted, true},
		{JobRunning, JobFailed, true},
		{JobRunning, JobQueued, false},
		{JobCompleted, JobRunning, false},
		{JobFailed, JobRunning, false},
	}
	for _, c := range cases {
		j := &Job{Status: c.from}
		if got := j.CanTransitionTo(c.to); got != c.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{JobCompleted, JobFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	nonTerminal := []JobStatus{JobQueued, JobRunning}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestParamsValueScanRoundTrip(t *testing.T) {
	p := Params{"width": float64(100), "format": "webp"}
	v, err := p.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	raw, ok := v.([]byte)
	if !ok {
		t.Fatalf("Value() returned %T, want []byte", v)
	}

	var out Params
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if out["width"] != float64(100) || out["format"] != "webp" {
		t.Errorf("Scan() roundtrip mismatch: got %+v", out)
	}
}

func TestParamsScanNil(t *testing.T) {
	var p Params
	if err := p.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if p == nil {
		t.Error("Scan(nil) should leave a non-nil empty map")
	}
}
