package inference

import (
	"math"

	"github.com/raymondhs/char-rnn/internal/logger"
)

const (
	DefaultBeamSize    = 8
	DefaultTemperature = 1.0
)

// RequestOptions carries caller overrides; nil fields fall back to the
// checkpoint defaults and then to the package defaults.
type RequestOptions struct {
	Text        string
	BeamSize    *int
	Temperature *float64
}

func ResolveRequest(opts RequestOptions, defaults GenDefaults) Request {
	req := Request{
		Text:        opts.Text,
		BeamSize:    DefaultBeamSize,
		Temperature: DefaultTemperature,
	}

	if defaults.BeamSize != nil && *defaults.BeamSize > 0 {
		req.BeamSize = *defaults.BeamSize
	}
	if defaults.Temperature != nil && *defaults.Temperature > 0 {
		req.Temperature = *defaults.Temperature
	}

	if opts.BeamSize != nil {
		req.BeamSize = *opts.BeamSize
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}

	if req.BeamSize < 1 {
		req.BeamSize = 1
	}
	if req.Temperature <= 0 || math.IsNaN(req.Temperature) {
		req.Temperature = DefaultTemperature
	}
	return req
}

// ClampOptions raises an explicit beam size below 1 to 1, warning once. Call
// it once per run or request, before resolving individual lines.
func ClampOptions(opts RequestOptions, log logger.Logger) RequestOptions {
	if opts.BeamSize == nil || *opts.BeamSize >= 1 {
		return opts
	}
	if log != nil {
		log.Warn("beam size below 1, clamping", "beam_size", *opts.BeamSize)
	}
	one := 1
	opts.BeamSize = &one
	return opts
}
