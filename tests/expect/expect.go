// Package expect provides PTY-driven tests for the cadence binaries using
// go-expect.
//
// It wraps the Netflix go-expect library so tests can run the real CLI and
// watch TUI under a pseudo-terminal, type into them, and assert on rendered
// output. Every test skips unless the binaries under test are on PATH.
package expect

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
)

// ContainerTestSem limits concurrent tests in containers to reduce resource contention.
// In container environments (Docker), running all tests in parallel causes CPU contention
// that leads to timing-related test failures. This semaphore limits concurrency to 2.
var ContainerTestSem = make(chan struct{}, 2)

// AcquireTestSlot limits parallelism in container environments.
// Call this after t.Parallel() in tests that are timing-sensitive.
// In containers, this blocks until a slot is available (max 2 concurrent tests).
// On local machines, this is a no-op.
func AcquireTestSlot(t *testing.T) {
	if IsRunningInContainer() {
		ContainerTestSem <- struct{}{}
		t.Cleanup(func() { <-ContainerTestSem })
	}
}

// IsRunningInContainer detects if we're running inside a Docker container.
func IsRunningInContainer() bool {
	// Check for /.dockerenv file (Docker-specific)
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	// Check cgroup for docker/lxc indicators
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "lxc") {
			return true
		}
	}
	return false
}

// Key constants for special keys (ANSI escape sequences / control bytes)
const (
	KeyEnter  = "\r"
	KeyTab    = "\t"
	KeyEscape = "\x1b"
	KeyCtrlC  = "\x03"
	KeyCtrlF  = "\x06"
	KeyCtrlR  = "\x12"
)

// CLISession wraps go-expect for driving a cadence binary under a PTY.
type CLISession struct {
	Console *expect.Console
	Timeout time.Duration
	cmd     *exec.Cmd
}

// SessionOption configures a CLISession.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout    time.Duration
	env        []string
	showOutput bool
}

// WithTimeout sets the default timeout for expect operations.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithEnv adds environment variables to the session. Entries here override
// inherited variables of the same name.
func WithEnv(env ...string) SessionOption {
	return func(c *sessionConfig) {
		c.env = append(c.env, env...)
	}
}

// WithOutput enables output to stdout for debugging.
func WithOutput(show bool) SessionOption {
	return func(c *sessionConfig) {
		c.showOutput = show
	}
}

// NewCLISession starts binary with args under a fresh PTY.
func NewCLISession(binary string, args []string, opts ...SessionOption) (*CLISession, error) {
	cfg := &sessionConfig{
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	binPath, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("binary %q not found: %w", binary, err)
	}

	var consoleOpts []expect.ConsoleOpt
	consoleOpts = append(consoleOpts, expect.WithDefaultTimeout(cfg.timeout))
	if cfg.showOutput {
		consoleOpts = append(consoleOpts, expect.WithStdout(os.Stdout))
	}

	console, err := expect.NewConsole(consoleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console: %w", err)
	}

	cmd := exec.Command(binPath, args...) //nolint:gosec // G204: binPath is from test config
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()

	// Later entries win on duplicates, so cfg.env overrides the inherited
	// environment.
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, cfg.env...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	if err := cmd.Start(); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	return &CLISession{
		Console: console,
		Timeout: cfg.timeout,
		cmd:     cmd,
	}, nil
}

// Send sends text to the program without a newline.
func (s *CLISession) Send(text string) error {
	_, err := s.Console.Send(text)
	return err
}

// SendLine sends text followed by a newline.
func (s *CLISession) SendLine(text string) error {
	_, err := s.Console.SendLine(text)
	return err
}

// SendKey sends a special key (use Key* constants).
func (s *CLISession) SendKey(key string) error {
	_, err := s.Console.Send(key)
	return err
}

// Expect waits for an exact string match in the output.
func (s *CLISession) Expect(str string) (string, error) {
	return s.Console.ExpectString(str)
}

// ExpectTimeout waits for an exact string match with a specific timeout.
func (s *CLISession) ExpectTimeout(str string, timeout time.Duration) (string, error) {
	return s.Console.Expect(expect.String(str), expect.WithTimeout(timeout))
}

// ExpectEOF waits for the program to exit and the PTY to drain.
func (s *CLISession) ExpectEOF() (string, error) {
	return s.Console.ExpectEOF()
}

// Wait blocks until the process exits and returns its error, if any.
func (s *CLISession) Wait() error {
	return s.cmd.Wait()
}

// Close terminates the session, killing the process if it is still running.
func (s *CLISession) Close() error {
	if err := s.Console.Close(); err != nil {
		return err
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return nil
}

// IsolatedHome creates an empty home directory with no config file and
// returns env entries pointing every cadence path into it. The binary under
// test sees built-in defaults, untouched by the developer's own config.
func IsolatedHome(t *testing.T) []string {
	t.Helper()

	home, err := os.MkdirTemp("", "cadence-expect-*")
	if err != nil {
		t.Fatalf("failed to create temp home: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(home) })

	return []string{
		"HOME=" + home,
		"XDG_CONFIG_HOME=" + filepath.Join(home, ".config"),
		"XDG_DATA_HOME=" + filepath.Join(home, ".local", "share"),
		"XDG_RUNTIME_DIR=" + home,
		// Empty values fall through to the path defaults, which the XDG
		// entries above point into the temp home.
		"CADENCE_CONTROL_SOCKET=",
		"CADENCE_INGEST_SOCKET=",
		"CADENCE_DISABLE=",
	}
}

// FastConfigHome writes an isolated home directory holding a config.yaml
// with engine waits scaled down to a few hundred milliseconds, and returns
// env entries pointing every cadence path into it. PTY tests cannot wait out
// the production six-second countdown.
func FastConfigHome(t *testing.T) []string {
	t.Helper()

	env := IsolatedHome(t)
	home := strings.TrimPrefix(env[0], "HOME=")

	configDir := filepath.Join(home, ".config", "cadence")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	config := `engine:
  sample_interval_ms: 25
  window_ms: 100
  grace_ms: 80
  short_wait_ms: 250
  long_wait_ms: 350
  midpoint_ms: 120
  min_length: 15
  cooldown_ms: 600
  manual_min_length: 10
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return env
}

// SkipIfCadenceMissing skips the test if the cadence binary is not available.
func SkipIfCadenceMissing(t interface{ Skip(args ...interface{}) }) {
	if _, err := exec.LookPath("cadence"); err != nil {
		t.Skip("cadence not available, skipping")
	}
}

// SkipIfHookMissing skips the test if the cadence-hook binary is not available.
func SkipIfHookMissing(t interface{ Skip(args ...interface{}) }) {
	if _, err := exec.LookPath("cadence-hook"); err != nil {
		t.Skip("cadence-hook not available, skipping")
	}
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t interface{ Skip(args ...interface{}) }, reason string) {
	if testing.Short() {
		t.Skip("skipping in short mode: " + reason)
	}
}
