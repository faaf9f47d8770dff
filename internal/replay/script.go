// Package replay executes cadence scripts: small line-oriented programs that
// drive an in-process trigger engine on a manual clock and assert what it
// does. A script spells out typing the way a user produces it (text plus a
// per-keystroke interval) and checks states and trigger decisions at chosen
// points, so a threshold change can be judged against recorded workflows
// before it ships.
//
// Script grammar, one directive per line:
//
//	type "some text" 80ms    ingest each rune, advancing the clock between
//	pause 2s                 advance the clock with no input
//	compose on|off           open or close an IME composition
//	force                    request a manual trigger
//	expect-state FLOW        assert the classifier state
//	expect-trigger           assert a trigger fired since the last check
//	expect-no-trigger        assert none did
//
// Blank lines and lines starting with # are ignored.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/runger/cadence/internal/engine"
)

// Op identifies a script directive.
type Op int

const (
	OpType Op = iota
	OpPause
	OpCompose
	OpForce
	OpExpectState
	OpExpectTrigger
	OpExpectNoTrigger
)

// Step is one parsed directive. Which fields are meaningful depends on Op.
type Step struct {
	Line int    // 1-based line number in the script
	Raw  string // the line as written, for reports
	Op   Op

	Text  string        // OpType: runes to ingest
	Every time.Duration // OpType: interval between keystrokes
	Dur   time.Duration // OpPause: how far to advance the clock
	Open  bool          // OpCompose: composition opens (true) or closes
	State engine.State  // OpExpectState: required state
}

// Script is a parsed cadence script.
type Script struct {
	Name  string
	Steps []Step
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse parses a script. name labels parse errors, compiler style
// ("name:line: ...").
func Parse(name string, r io.Reader) (*Script, error) {
	script := &Script{Name: name}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		tokens, err := shlex.Split(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if len(tokens) == 0 {
			continue
		}

		step, err := parseStep(tokens)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		step.Line = line
		step.Raw = trimmed
		script.Steps = append(script.Steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return script, nil
}

func parseStep(tokens []string) (Step, error) {
	switch tokens[0] {
	case "type":
		if len(tokens) != 3 {
			return Step{}, fmt.Errorf(`type wants: type "text" <interval>`)
		}
		every, err := parseInterval(tokens[2])
		if err != nil {
			return Step{}, fmt.Errorf("type interval: %w", err)
		}
		return Step{Op: OpType, Text: tokens[1], Every: every}, nil

	case "pause":
		if len(tokens) != 2 {
			return Step{}, fmt.Errorf("pause wants: pause <duration>")
		}
		d, err := parseInterval(tokens[1])
		if err != nil {
			return Step{}, fmt.Errorf("pause duration: %w", err)
		}
		return Step{Op: OpPause, Dur: d}, nil

	case "compose":
		if len(tokens) != 2 || (tokens[1] != "on" && tokens[1] != "off") {
			return Step{}, fmt.Errorf("compose wants: compose on|off")
		}
		return Step{Op: OpCompose, Open: tokens[1] == "on"}, nil

	case "force":
		if len(tokens) != 1 {
			return Step{}, fmt.Errorf("force takes no arguments")
		}
		return Step{Op: OpForce}, nil

	case "expect-state":
		if len(tokens) != 2 {
			return Step{}, fmt.Errorf("expect-state wants: expect-state <STATE>")
		}
		state, err := parseState(tokens[1])
		if err != nil {
			return Step{}, err
		}
		return Step{Op: OpExpectState, State: state}, nil

	case "expect-trigger":
		if len(tokens) != 1 {
			return Step{}, fmt.Errorf("expect-trigger takes no arguments")
		}
		return Step{Op: OpExpectTrigger}, nil

	case "expect-no-trigger":
		if len(tokens) != 1 {
			return Step{}, fmt.Errorf("expect-no-trigger takes no arguments")
		}
		return Step{Op: OpExpectNoTrigger}, nil

	default:
		return Step{}, fmt.Errorf("unknown directive %q", tokens[0])
	}
}

func parseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func parseState(s string) (engine.State, error) {
	switch strings.ToUpper(s) {
	case "FLOW":
		return engine.Flow, nil
	case "EDITING":
		return engine.Editing, nil
	case "REVIEWING":
		return engine.Reviewing, nil
	case "STOPPED":
		return engine.Stopped, nil
	default:
		return 0, fmt.Errorf("unknown state %q", s)
	}
}
