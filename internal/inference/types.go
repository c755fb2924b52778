package inference

import (
	"context"
	"time"
)

// Engine re-cases text with one loaded checkpoint.
type Engine interface {
	Recase(ctx context.Context, req *Request) (*Result, error)
	Close() error
}

// Request is one line of input with fully resolved search options.
type Request struct {
	Text        string
	BeamSize    int
	Temperature float64
}

type Result struct {
	Text  string
	Score float64
	Stats Stats
}

type Stats struct {
	Characters  int
	Unknown     int
	Steps       int
	OracleCalls int
	Candidates  int
	PeakBeam    int
	Duration    time.Duration
	CPS         float64
}

// Add accumulates o into s, keeping the larger PeakBeam.
func (s *Stats) Add(o Stats) {
	s.Characters += o.Characters
	s.Unknown += o.Unknown
	s.Steps += o.Steps
	s.OracleCalls += o.OracleCalls
	s.Candidates += o.Candidates
	s.PeakBeam = max(s.PeakBeam, o.PeakBeam)
	s.Duration += o.Duration
	if s.Duration.Seconds() > 0 {
		s.CPS = float64(s.Characters) / s.Duration.Seconds()
	}
}
