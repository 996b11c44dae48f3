// Package engine runs the top-level dispatch loop: it pairs inbound packets
// with local command executions and serializes everything that goes back out
// on the wire.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ooblab/serclient/internal/command"
	"github.com/ooblab/serclient/internal/constants"
	"github.com/ooblab/serclient/internal/executor"
	"github.com/ooblab/serclient/internal/interfaces"
	"github.com/ooblab/serclient/internal/journal"
	"github.com/ooblab/serclient/internal/reassembly"
	"github.com/ooblab/serclient/internal/serio"
	"github.com/ooblab/serclient/internal/wire"
)

// Config assembles an engine's collaborators.
type Config struct {
	Device  interfaces.SerialDevice
	Clock   interfaces.Clock // nil selects the system clock
	Factory interfaces.Factory

	// RootDir anchors the restart journal and the update log.
	RootDir string

	// PoolMaxBytes caps reassembly buffering; 0 selects the default.
	PoolMaxBytes int

	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Engine owns the serial device, the command queue, the per-guid execution
// map, and the deferred-send queue. All fields except outputQueue are
// touched only by the goroutine running Run; outputQueue is shared with
// executors under outputMu.
type Engine struct {
	reader   *serio.Reader
	writer   *serio.Writer
	clock    interfaces.Clock
	factory  interfaces.Factory
	journal  *journal.Journal
	rootDir  string
	logger   interfaces.Logger
	observer interfaces.Observer

	commandQueue []command.Request
	threadMap    map[uuid.UUID]interfaces.Execution

	outputMu    sync.Mutex
	outputQueue []*wire.Packet

	processCommandQueue bool
}

// New builds an engine over an already-open device.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = serio.SystemClock{}
	}

	writer := serio.NewWriter(cfg.Device, cfg.Logger, cfg.Observer)
	pool := reassembly.New(cfg.PoolMaxBytes)
	reader := serio.NewReader(cfg.Device, clock, pool, writer, cfg.Logger, cfg.Observer)

	return &Engine{
		reader:              reader,
		writer:              writer,
		clock:               clock,
		factory:             cfg.Factory,
		journal:             journal.New(cfg.RootDir),
		rootDir:             cfg.RootDir,
		logger:              cfg.Logger,
		observer:            cfg.Observer,
		threadMap:           make(map[uuid.UUID]interfaces.Execution),
		processCommandQueue: true,
	}
}

// SendLater enqueues p for transmission by the engine goroutine. It is the
// Sink executors complete through and is safe for concurrent use.
func (e *Engine) SendLater(p *wire.Packet) {
	e.outputMu.Lock()
	defer e.outputMu.Unlock()
	e.outputQueue = append(e.outputQueue, p)
}

// Run executes the dispatch loop until ctx is cancelled. The current
// iteration finishes and pending output drains before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.resume()

	for {
		if ctx.Err() != nil {
			e.drainOutput()
			if e.logger != nil {
				e.logger.Infof("engine stopping")
			}
			return nil
		}
		e.tick()
	}
}

// resume replays the restart journal: if the agent went down owing a
// response, announce that it is ready again and pre-bake the answer.
func (e *Engine) resume() {
	guid, ok := e.journal.Consume()
	if !ok {
		return
	}
	if e.logger != nil {
		e.logger.Infof("resuming after restart: guid=%s", guid)
	}
	e.threadMap[guid] = executor.NewCompleted(wire.NewResponse(guid, wire.Success, e.updateLog()))
	e.writer.Send(wire.NewAuthResponse(guid))
}

// updateLog returns the last software-update output, empty when absent.
func (e *Engine) updateLog() []byte {
	b, err := os.ReadFile(filepath.Join(e.rootDir, constants.UpdateLogFileName))
	if err != nil {
		return nil
	}
	return b
}

// tick is one pass of the main loop.
func (e *Engine) tick() {
	if p := e.reader.ReadOne(constants.ReadPollTimeoutSeconds); p != nil {
		e.react(p)
	}

	e.drainOutput()

	done := e.isIdle()
	if done && !e.processCommandQueue {
		e.processCommandQueue = true
		if e.logger != nil {
			e.logger.Debugf("leaving blocking mode")
		}
	}

	if e.processCommandQueue {
		e.drainCommands(done)
	} else if e.logger != nil {
		e.logger.Debugf("waiting for %d executions to terminate", len(e.threadMap))
	}

	if e.observer != nil {
		e.observer.ObserveQueueDepth(len(e.commandQueue), len(e.threadMap))
	}
}

// drainOutput transmits every deferred packet. The lock is held for the full
// drain so executors cannot wedge packets between two of ours.
func (e *Engine) drainOutput() {
	e.outputMu.Lock()
	defer e.outputMu.Unlock()
	for _, p := range e.outputQueue {
		e.writer.Send(p)
	}
	e.outputQueue = e.outputQueue[:0]
}

// drainCommands pops requests off the FIFO. Non-blocking requests spawn
// immediately; a blocking request spawns only once nothing else runs, and
// parks the queue until then.
func (e *Engine) drainCommands(done bool) {
	for len(e.commandQueue) > 0 {
		req := e.commandQueue[0]
		if req.IsBlocking() {
			e.processCommandQueue = false
			if !done {
				if e.logger != nil {
					e.logger.Debugf("entering blocking mode")
				}
			} else {
				if e.logger != nil {
					e.logger.Debugf("spawning blocking command")
				}
				e.commandQueue = e.commandQueue[1:]
				e.spawn(req)
			}
			break
		}
		e.commandQueue = e.commandQueue[1:]
		e.spawn(req)
		done = false
	}
}

// isIdle reports whether no tracked execution is still running.
func (e *Engine) isIdle() bool {
	for _, ex := range e.threadMap {
		if ex != nil && ex.IsRunning() {
			return false
		}
	}
	return true
}

// react dispatches one inbound logical packet.
func (e *Engine) react(p *wire.Packet) {
	if e.logger != nil {
		e.logger.Infof("%s received: guid=%s", p.Command, p.GUID)
	}
	if e.observer != nil {
		e.observer.ObservePacketIn(p.Command.String(), p.Size())
	}

	switch p.Command {
	case wire.Ack:
		e.writer.Send(wire.NewAck(p.GUID))
	case wire.Command:
		e.processCommand(p)
	case wire.AuthResponse:
		e.processAuthResponse(p)
	case wire.Received, wire.Response:
		// Acknowledgements we may have solicited; nothing to do.
	}
}

// processCommand validates the command body. A malformed payload is answered
// with AuthResponse plus a pre-baked error response; a valid one is
// acknowledged and queued.
func (e *Engine) processCommand(p *wire.Packet) {
	req, err := command.ParseBody(p.GUID, p.Body)
	if err != nil {
		if e.logger != nil {
			e.logger.Errorf("malformed command payload: guid=%s err=%v", p.GUID, err)
		}
		e.writer.Send(wire.NewAuthResponse(p.GUID))
		e.threadMap[p.GUID] = executor.NewCompleted(wire.NewResponse(p.GUID, wire.Error, nil))
		return
	}

	e.writer.Send(wire.NewReceivedAll(p.GUID))
	e.commandQueue = append(e.commandQueue, req)
}

// processAuthResponse answers the host's "give me the answer you are
// holding" with the response stored for the guid, then releases the handle.
func (e *Engine) processAuthResponse(p *wire.Packet) {
	ex, ok := e.threadMap[p.GUID]
	if !ok || ex == nil {
		if e.logger != nil {
			e.logger.Errorf("response requested for unknown guid: %s", p.GUID)
		}
		e.writer.Send(wire.NewResponse(p.GUID, wire.Error, nil))
		return
	}
	e.writer.Send(ex.ResponsePacket())
	delete(e.threadMap, p.GUID)
}

// spawn hands a request to the executor factory. Commands that may take the
// agent down journal their guid first so the response survives the restart.
func (e *Engine) spawn(req command.Request) {
	if req.Command == "restart" || req.IsUpdateSoftware() {
		if err := e.journal.Write(req.GUID); err != nil && e.logger != nil {
			e.logger.Warnf("could not persist restart journal: %v", err)
		}
	}

	if e.observer != nil {
		e.observer.ObserveCommandStart(req.IsBlocking())
	}
	e.threadMap[req.GUID] = e.factory.Spawn(req, e)
}

// Compile-time interface check
var _ interfaces.Sink = (*Engine)(nil)
