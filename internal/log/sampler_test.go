package log

import "testing"

func TestProgressSampler(t *testing.T) {
	t.Parallel()

	s := NewProgressSampler(10)
	steps := []struct {
		pct   float64
		stage string
		want  bool
	}{
		{0, "categories", true},
		{10, "categories", true},
		{10, "newest", true},
		{12, "newest", false},
		{40, "newest", true},
		{90.25, "images", true},
		{92.5, "images", false},
		{100, "images", true},
		{100, "done", true},
		{100, "done", false},
	}
	for i, st := range steps {
		if got := s.ShouldLog(st.pct, st.stage); got != st.want {
			t.Errorf("step %d ShouldLog(%v, %q) = %v, want %v", i, st.pct, st.stage, got, st.want)
		}
	}

	s.Reset()
	if !s.ShouldLog(0, "categories") {
		t.Error("expected first event after Reset to be logged")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	t.Parallel()

	var s *ProgressSampler
	if !s.ShouldLog(50, "x") {
		t.Error("nil sampler should log everything")
	}
	s.Reset()
}
