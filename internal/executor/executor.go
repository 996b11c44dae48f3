// Package executor runs accepted command requests as local shell commands
// and shapes their results into response packets.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ooblab/serclient/internal/command"
	"github.com/ooblab/serclient/internal/interfaces"
	"github.com/ooblab/serclient/internal/wire"
)

// Runner executes one command request on its own goroutine.
//
// Completion protocol: the runner stores the response packet, flips its
// running state, and enqueues an AuthResponse for the guid through the sink.
// The engine then holds the response until the host asks for it with an
// AuthResponse of its own.
type Runner struct {
	req      command.Request
	timeout  time.Duration
	sink     interfaces.Sink
	logger   interfaces.Logger
	observer interfaces.Observer

	mu      sync.Mutex
	running bool
	resp    *wire.Packet
}

// NewRunner creates an unstarted runner. logger and observer may be nil.
func NewRunner(req command.Request, timeout time.Duration, sink interfaces.Sink,
	logger interfaces.Logger, observer interfaces.Observer) *Runner {
	return &Runner{req: req, timeout: timeout, sink: sink, logger: logger, observer: observer}
}

// Start launches the execution and returns immediately.
func (r *Runner) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	go r.run()
}

// IsRunning reports whether the execution is still in flight.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// ResponsePacket returns the final response once the execution finished.
func (r *Runner) ResponsePacket() *wire.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp
}

func (r *Runner) run() {
	start := time.Now()
	resp := r.execute()

	r.mu.Lock()
	r.resp = resp
	r.running = false
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveCommandDone(uint64(time.Since(start).Nanoseconds()), resp.Outcome == wire.Success)
	}
	r.sink.SendLater(wire.NewAuthResponse(r.req.GUID))
}

func (r *Runner) execute() *wire.Packet {
	if r.req.BinaryPath != "" {
		defer os.Remove(r.req.BinaryPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", r.req.Command)
	cmd.Env = os.Environ()
	if r.req.BinaryPath != "" {
		// The command addresses its attachment through the environment.
		cmd.Env = append(cmd.Env, "SERCLIENT_BINARY_FILE="+r.req.BinaryPath)
	}
	// A grandchild that outlives the shell keeps the output pipe open; stop
	// waiting for it one second after the shell is gone or the deadline hit.
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		if r.logger != nil {
			r.logger.Warnf("command timed out after %s: guid=%s", r.timeout, r.req.GUID)
		}
		body := fmt.Sprintf("command timed out after %s", r.timeout)
		return wire.NewResponse(r.req.GUID, wire.Error, []byte(body))
	case err != nil && !errors.Is(err, exec.ErrWaitDelay):
		if r.logger != nil {
			r.logger.Warnf("command failed: guid=%s err=%v", r.req.GUID, err)
		}
		return wire.NewResponse(r.req.GUID, wire.Error, out)
	default:
		if r.logger != nil {
			r.logger.Debugf("command finished: guid=%s output=%dB", r.req.GUID, len(out))
		}
		return wire.NewResponse(r.req.GUID, wire.Success, out)
	}
}

// Completed is a pre-baked execution: a response constructed before the
// dispatch loop ever sees it (restart resume, rejected commands).
type Completed struct {
	resp *wire.Packet
}

// NewCompleted wraps p as an already-finished execution.
func NewCompleted(p *wire.Packet) *Completed {
	return &Completed{resp: p}
}

func (c *Completed) IsRunning() bool {
	return false
}

func (c *Completed) ResponsePacket() *wire.Packet {
	return c.resp
}

// Factory spawns shell runners with a fixed per-command timeout.
type Factory struct {
	timeout  time.Duration
	logger   interfaces.Logger
	observer interfaces.Observer
}

// NewFactory creates a factory. logger and observer may be nil.
func NewFactory(timeout time.Duration, logger interfaces.Logger, observer interfaces.Observer) *Factory {
	return &Factory{timeout: timeout, logger: logger, observer: observer}
}

// Spawn starts a runner for req and returns its execution handle.
func (f *Factory) Spawn(req command.Request, sink interfaces.Sink) interfaces.Execution {
	r := NewRunner(req, f.timeout, sink, f.logger, f.observer)
	r.Start()
	return r
}

// Compile-time interface checks
var (
	_ interfaces.Execution = (*Runner)(nil)
	_ interfaces.Execution = (*Completed)(nil)
	_ interfaces.Factory   = (*Factory)(nil)
)
