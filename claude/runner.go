package claude

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ccdb/ccdb/log"
)

const (
	// scannerMaxBufSize bounds one stdout line. Tool results can carry
	// whole files, so single lines reach megabytes.
	scannerMaxBufSize     = 10 * 1024 * 1024
	scannerInitialBufSize = 256 * 1024

	// stderrCaptureLimit bounds how much stderr is kept for error reports
	stderrCaptureLimit = 8 * 1024

	interruptGracePeriod = 10 * time.Second
	killGracePeriod      = 5 * time.Second
)

// sessionIDPattern is the only session id shape ever passed to --resume.
// Anything else is rejected before a process is spawned.
var sessionIDPattern = regexp.MustCompile(`^[a-f0-9\-]+$`)

// ValidSessionID reports whether an id is safe to pass to the CLI
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// envDenylist holds process-wide secrets that must never reach the child
var envDenylist = map[string]bool{
	"CLAUDECODE":        true,
	"DISCORD_BOT_TOKEN": true,
	"DISCORD_TOKEN":     true,
	"API_SECRET_KEY":    true,
}

// Runner spawns one CLI child process and streams its stdout as events.
// Each Runner runs at most one process; use Clone for the next run.
type Runner struct {
	opts Options

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.Closer
	started bool

	// done is closed after the stream is drained and the process reaped
	done chan struct{}

	// abort is closed by Kill after force-killing. It releases the pump
	// from a blocked send so the stream can finish even when the consumer
	// has stopped draining.
	abort     chan struct{}
	abortOnce sync.Once

	timedOut atomic.Bool

	// interruptGrace and killGrace override the escalation delays (tests)
	interruptGrace time.Duration
	killGrace      time.Duration
}

// NewRunner creates an unstarted Runner. Partial message streaming is on
// by default; the supervisor's live text editing depends on it.
func NewRunner(opts Options) *Runner {
	if opts.Command == "" {
		opts.Command = "claude"
	}
	opts.IncludePartialMessages = true
	return &Runner{
		opts:  opts,
		done:  make(chan struct{}),
		abort: make(chan struct{}),
	}
}

// Clone returns a new, unstarted Runner with the same options, optionally
// overridden per run.
func (r *Runner) Clone(overrides ...CloneOption) *Runner {
	opts := r.opts
	for _, o := range overrides {
		o(&opts)
	}
	return NewRunner(opts)
}

// Options returns a copy of the runner's options
func (r *Runner) Options() Options {
	return r.opts
}

// buildArgs constructs the CLI argv. Order matters, and the trailing "--"
// keeps prompts that start with "-" from being read as flags.
func (r *Runner) buildArgs(prompt, sessionID string) []string {
	args := []string{"-p", "--output-format", "stream-json"}

	if r.opts.Model != "" {
		args = append(args, "--model", r.opts.Model)
	}
	if r.opts.PermissionMode != "" {
		args = append(args, "--permission-mode", r.opts.PermissionMode)
	}

	args = append(args, "--verbose")

	if len(r.opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(r.opts.AllowedTools, ","))
	}
	if r.opts.DangerouslySkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if r.opts.IncludePartialMessages {
		args = append(args, "--include-partial-messages")
	}
	if r.opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", r.opts.AppendSystemPrompt)
	}

	if sessionID != "" {
		args = append(args, "--resume", sessionID)
	}

	args = append(args, "--", prompt)
	return args
}

// buildEnv filters the parent environment through the denylist and injects
// the per-run variables.
func (r *Runner) buildEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if envDenylist[key] {
			continue
		}
		env = append(env, kv)
	}

	if r.opts.APIPort > 0 {
		env = append(env, fmt.Sprintf("CCDB_API_URL=http://127.0.0.1:%d", r.opts.APIPort))
		if r.opts.APISecret != "" {
			env = append(env, "CCDB_API_SECRET="+r.opts.APISecret)
		}
	}
	if r.opts.ThreadID != "" {
		env = append(env, "DISCORD_THREAD_ID="+r.opts.ThreadID)
	}
	return env
}

// Run spawns the CLI and returns a channel of parsed events. The channel
// is closed when the stream ends; a terminal event (IsComplete) is always
// the last event except after a caller-initiated kill.
func (r *Runner) Run(ctx context.Context, prompt, sessionID string) (<-chan StreamEvent, error) {
	if sessionID != "" && !ValidSessionID(sessionID) {
		return nil, fmt.Errorf("invalid session id %q", sessionID)
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner already started")
	}
	r.started = true

	// No shell: argv-style spawn only
	cmd := exec.Command(r.opts.Command, r.buildArgs(prompt, sessionID)...)
	cmd.Env = r.buildEnv()
	if r.opts.WorkingDir != "" {
		cmd.Dir = r.opts.WorkingDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("start CLI: %w", err)
	}
	r.cmd = cmd
	r.stdout = stdout
	r.mu.Unlock()

	log.Info().
		Int("pid", cmd.Process.Pid).
		Str("thread_id", r.opts.ThreadID).
		Str("resume", sessionID).
		Msg("claude CLI started")

	var timer *time.Timer
	if r.opts.TimeoutSeconds > 0 {
		timer = time.AfterFunc(time.Duration(r.opts.TimeoutSeconds)*time.Second, func() {
			r.timedOut.Store(true)
			log.Warn().Int("timeout_s", r.opts.TimeoutSeconds).Msg("claude CLI timed out, killing")
			r.Kill()
		})
	}

	events := make(chan StreamEvent, 16)

	// Capture a bounded stderr tail for non-zero exit reports
	var stderrBuf bytes.Buffer
	var stderrMu sync.Mutex
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrMu.Lock()
			if stderrBuf.Len() < stderrCaptureLimit {
				stderrBuf.WriteString(scanner.Text())
				stderrBuf.WriteByte('\n')
			}
			stderrMu.Unlock()
		}
	}()

	go func() {
		defer close(events)
		defer close(r.done)
		if timer != nil {
			defer timer.Stop()
		}

		sawTerminal := r.pump(ctx, stdout, events)

		err := cmd.Wait()

		switch {
		case r.timedOut.Load():
			if !sawTerminal {
				r.emit(events, StreamEvent{
					Kind:       EventResult,
					IsComplete: true,
					Error:      fmt.Sprintf("Timed out after %d seconds", r.opts.TimeoutSeconds),
				})
			}

		case err != nil && !sawTerminal:
			// A signal kill is always caller-initiated and stays silent.
			if signaled(cmd) {
				log.Debug().Msg("claude CLI killed by signal")
				return
			}
			code := cmd.ProcessState.ExitCode()
			if code <= 0 {
				return
			}
			msg := fmt.Sprintf("CLI exited with code %d", code)
			stderrMu.Lock()
			if tail := strings.TrimSpace(stderrBuf.String()); tail != "" {
				msg = msg + ": " + tail
			}
			stderrMu.Unlock()
			r.emit(events, StreamEvent{Kind: EventResult, IsComplete: true, Error: msg})

		default:
			_ = err
		}
	}()

	return events, nil
}

// pump reads stdout line by line, parsing and forwarding events. Returns
// whether a terminal event was yielded.
func (r *Runner) pump(ctx context.Context, stdout io.Reader, events chan<- StreamEvent) bool {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, scannerInitialBufSize), scannerMaxBufSize)

	sawTerminal := false
	for scanner.Scan() {
		ev := ParseLine(scanner.Bytes())
		if ev == nil {
			continue
		}
		if ev.IsComplete {
			sawTerminal = true
		}
		select {
		case events <- *ev:
		case <-ctx.Done():
			return sawTerminal
		case <-r.abort:
			return sawTerminal
		}
	}
	if err := scanner.Err(); err != nil && !aborted(r.abort) {
		log.Warn().Err(err).Msg("claude CLI stdout read error")
	}
	return sawTerminal
}

// emit forwards a synthesized event unless the run has been aborted
func (r *Runner) emit(events chan<- StreamEvent, ev StreamEvent) {
	select {
	case events <- ev:
	case <-r.abort:
	}
}

func aborted(abort <-chan struct{}) bool {
	select {
	case <-abort:
		return true
	default:
		return false
	}
}

// signaled reports whether the process was terminated by a signal
func signaled(cmd *exec.Cmd) bool {
	if cmd.ProcessState == nil {
		return false
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		return ws.Signaled()
	}
	return false
}

// running returns the live process, or nil once it has exited
func (r *Runner) running() *os.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	default:
	}
	return r.cmd.Process
}

func grace(override, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return fallback
}

// Interrupt sends a soft interrupt (SIGINT, the CLI's Escape equivalent)
// and escalates to Kill if the stream does not settle within the grace
// period. Idempotent; a no-op once the run has finished. Always returns:
// the escalation path force-unblocks the stream, so Interrupt cannot be
// held hostage by a consumer that stopped draining.
func (r *Runner) Interrupt() {
	proc := r.running()
	if proc == nil {
		return
	}

	if err := proc.Signal(syscall.SIGINT); err != nil {
		// Process likely already dead
		return
	}

	select {
	case <-r.done:
	case <-time.After(grace(r.interruptGrace, interruptGracePeriod)):
		log.Warn().Int("pid", proc.Pid).Msg("claude CLI ignored interrupt, escalating to kill")
		r.Kill()
	}
}

// Kill sends SIGTERM, waits briefly, then force-kills and reaps.
// Idempotent; a no-op once the run has finished. The force-kill path also
// closes the stdout pipe and aborts pending event sends: a grandchild
// holding the pipe open, or a consumer that stopped draining, must not
// keep the final wait from completing.
func (r *Runner) Kill() {
	proc := r.running()
	if proc == nil {
		return
	}

	if err := proc.Signal(syscall.SIGTERM); err == nil {
		select {
		case <-r.done:
			return
		case <-time.After(grace(r.killGrace, killGracePeriod)):
		}
	}

	proc.Kill()
	r.abortOnce.Do(func() { close(r.abort) })
	r.closeStdout()
	<-r.done
}

// closeStdout forces the pump's read loop to terminate
func (r *Runner) closeStdout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stdout != nil {
		r.stdout.Close()
	}
}
