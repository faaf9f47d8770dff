package replay

import (
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/runger/cadence/internal/engine"
)

// Step and run statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// scriptEpoch is the virtual instant every run starts at. Fixed so two runs
// of the same script produce identical trigger offsets.
var scriptEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepResult is the outcome of one directive.
type StepResult struct {
	Line   int
	Raw    string
	Status string // "passed", "failed", "skipped"
	Detail string // failure explanation, empty otherwise
}

// Trigger records one fired trigger, timed on the virtual clock.
type Trigger struct {
	At    time.Duration // offset from script start
	Chars int
	Text  string
}

// Result is the outcome of a whole script run.
type Result struct {
	Status   string // "passed", "failed"
	Steps    []StepResult
	Triggers []Trigger     // every trigger that fired, expected or not
	Elapsed  time.Duration // total virtual time
}

// Passed reports whether every step passed.
func (r *Result) Passed() bool {
	return r.Status == StatusPassed
}

// Options configures a run.
type Options struct {
	// Config holds the engine thresholds; zero fields take engine defaults.
	Config engine.Config

	// Logger receives the engine's own logging. Nil discards it.
	Logger *slog.Logger
}

// Run executes the script against a fresh engine on a manual clock. The
// first failing expectation stops the run; remaining steps are reported as
// skipped. Execution is single-goroutine and fully deterministic.
func Run(script *Script, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &runner{
		clock: engine.NewManualClock(scriptEpoch),
	}
	r.eng = engine.New(opts.Config, engine.Deps{Clock: r.clock, Logger: logger})
	r.eng.OnTrigger(func(text string) {
		r.pending++
		r.fired = append(r.fired, Trigger{
			At:    r.clock.Now().Sub(scriptEpoch),
			Chars: utf8.RuneCountInString(text),
			Text:  text,
		})
	})
	r.eng.Activate(func() string { return string(r.field) })
	defer r.eng.Stop()

	result := &Result{
		Status: StatusPassed,
		Steps:  make([]StepResult, 0, len(script.Steps)),
	}

	failed := false
	for _, step := range script.Steps {
		if failed {
			result.Steps = append(result.Steps, StepResult{
				Line: step.Line, Raw: step.Raw, Status: StatusSkipped,
			})
			continue
		}

		sr := StepResult{Line: step.Line, Raw: step.Raw, Status: StatusPassed}
		if detail := r.exec(step); detail != "" {
			sr.Status = StatusFailed
			sr.Detail = detail
			failed = true
			result.Status = StatusFailed
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Triggers = r.fired
	result.Elapsed = r.clock.Now().Sub(scriptEpoch)
	return result
}

// runner is the mutable state of one script run. The manual clock fires
// callbacks synchronously on the advancing goroutine, so no locking is
// needed around field or the trigger records.
type runner struct {
	clock   *engine.ManualClock
	eng     *engine.Engine
	field   []rune // the monitored field's current text
	pending int    // triggers fired but not yet consumed by expect-trigger
	fired   []Trigger
}

// exec runs one directive. It returns a failure detail, or "" on success.
func (r *runner) exec(step Step) string {
	switch step.Op {
	case OpType:
		// Runes typed inside a composition still land in the field; they
		// are only excluded from the velocity account.
		for _, ch := range step.Text {
			r.field = append(r.field, ch)
			r.eng.Ingest(ch)
			r.clock.Advance(step.Every)
		}
		return ""

	case OpPause:
		r.clock.Advance(step.Dur)
		return ""

	case OpCompose:
		r.eng.SetComposing(step.Open)
		return ""

	case OpForce:
		r.eng.ForceTrigger()
		return ""

	case OpExpectState:
		if got := r.eng.State(); got != step.State {
			return fmt.Sprintf("state = %s, want %s", got, step.State)
		}
		return ""

	case OpExpectTrigger:
		if r.pending == 0 {
			return "no trigger fired"
		}
		r.pending--
		return ""

	case OpExpectNoTrigger:
		if r.pending > 0 {
			return fmt.Sprintf("%d unexpected trigger(s)", r.pending)
		}
		return ""

	default:
		return fmt.Sprintf("unhandled op %d", step.Op)
	}
}
