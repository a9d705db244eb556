package gates

import (
	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/events"
)

// Gate is one stage-boundary check.
type Gate func() domain.ValidationResult

// Step pairs a stage label with its gate for ordered execution.
type Step struct {
	Stage string
	Gate  Gate
}

// Runner executes gates in order between durable pipeline steps, emitting a
// progress event at every stage boundary and stopping at the first failing
// gate. Warnings and a truncation attachment accumulate across steps.
type Runner struct {
	pub events.Publisher
}

// NewRunner creates a gate runner. A nil publisher drops events.
func NewRunner(pub events.Publisher) *Runner {
	if pub == nil {
		pub = events.Nop()
	}
	return &Runner{pub: pub}
}

// Run executes steps for one document. The returned result is the first
// failure, or a passing result with all accumulated warnings, the last
// reroute, and any truncation attachment.
func (r *Runner) Run(documentID string, steps []Step) domain.ValidationResult {
	out := domain.OK()

	for i, s := range steps {
		res := s.Gate()

		percent := float64(i+1) / float64(len(steps)) * 100
		msg := "passed"
		if !res.Valid {
			msg = string(res.Err.Code)
		} else if res.Reroute != domain.RouteNone {
			msg = "rerouted to " + string(res.Reroute)
		}
		r.pub.Publish(events.Event{
			Source:  documentID,
			Stage:   s.Stage,
			Percent: percent,
			Message: msg,
		})

		if !res.Valid {
			res.Warnings = append(out.Warnings, res.Warnings...)
			return res
		}

		out.Warnings = append(out.Warnings, res.Warnings...)
		if res.Reroute != domain.RouteNone {
			out.Reroute = res.Reroute
		}
		if res.Truncation != nil {
			out.Truncation = res.Truncation
		}
	}

	return out
}
