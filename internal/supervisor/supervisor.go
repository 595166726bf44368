// Package supervisor spawns the editor server as a child process, restarts
// it when it exits, and exposes a correlation-ID request/response protocol
// over the live channel.
//
// A crash is not a user error: the supervisor logs the exit and respawns
// immediately, and every request in flight at the time settles with a
// retryable failure instead of being silently dropped. A requested restart
// (RESTART control action) instead lets the current instance flush pending
// state and exit cleanly before the respawn.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	forgeerrors "github.com/assetforge/assetforge/internal/errors"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/protocol"
)

// PortEnvVar conveys the live-channel port to the spawned editor server.
const PortEnvVar = "ASSETFORGE_EDITOR_PORT"

// Transport abstracts the editor-facing side of the live channel.
type Transport interface {
	SendToEditor(protocol.Mutation)
	OnEditorMessage(func(protocol.Mutation))
}

// Config tunes a Supervisor.
type Config struct {
	// Command is the argv of the editor server. Empty means re-exec the
	// current binary with the editor-server subcommand.
	Command []string
	// Port is exported to the child via PortEnvVar.
	Port int
	// RequestTimeout bounds Request round-trips. Defaults to 10s.
	RequestTimeout time.Duration
	// RestartDelay spaces respawns after an unexpected exit. Defaults to 1s.
	RestartDelay time.Duration
	Logger       logging.Logger
}

type result struct {
	m   protocol.Mutation
	err error
}

// Supervisor owns exactly one live editor server instance at a time.
type Supervisor struct {
	cfg       Config
	transport Transport
	logger    logging.Logger

	mutex            sync.Mutex
	pending          map[string]chan result
	restartRequested bool
	lastStart        time.Time
}

// New creates a supervisor bound to the given transport. Start must be
// called to spawn the first instance.
func New(cfg Config, transport Transport) *Supervisor {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Supervisor{
		cfg:       cfg,
		transport: transport,
		logger:    logger.WithScope("supervisor"),
		pending:   make(map[string]chan result),
	}
	transport.OnEditorMessage(s.handleEditorMessage)
	return s
}

// Start runs the spawn loop until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	go s.runLoop(ctx)
}

// LastStart returns when the current instance was started.
func (s *Supervisor) LastStart() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastStart
}

// Request sends an action to the editor tagged with a fresh correlation
// identifier and waits for the matching response. It fails retryably when
// the editor dies mid-flight.
func (s *Supervisor) Request(ctx context.Context, m protocol.Mutation) (protocol.Mutation, error) {
	id := uuid.NewString()
	ch := make(chan result, 1)

	s.mutex.Lock()
	s.pending[id] = ch
	s.mutex.Unlock()

	s.transport.SendToEditor(m.WithRequestID(id))

	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.m, res.err
	case <-timer.C:
		s.dropPending(id)
		return protocol.Mutation{}, fmt.Errorf("editor request %s timed out after %s", m.Type, s.cfg.RequestTimeout)
	case <-ctx.Done():
		s.dropPending(id)
		return protocol.Mutation{}, ctx.Err()
	}
}

// RequestRestart asks the current instance to persist its state and exit
// cleanly; the spawn loop then brings up a replacement.
func (s *Supervisor) RequestRestart() {
	s.mutex.Lock()
	s.restartRequested = true
	s.mutex.Unlock()
	s.transport.SendToEditor(protocol.Restart())
}

func (s *Supervisor) runLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		cmd := s.buildCommand(ctx)
		s.mutex.Lock()
		s.lastStart = time.Now()
		s.mutex.Unlock()

		s.logger.Info("starting editor server", "command", cmd.Path)
		err := cmd.Run()

		// Whatever was in flight is addressed to a dead instance now.
		s.failPending(fmt.Errorf("editor server exited: %v", err))

		if ctx.Err() != nil {
			return
		}

		s.mutex.Lock()
		requested := s.restartRequested
		s.restartRequested = false
		s.mutex.Unlock()

		if requested && err == nil {
			s.logger.Info("editor server restarted on request")
			continue
		}

		s.logger.Warn(err, "editor server exited unexpectedly, respawning")
		if !sleep(ctx, s.cfg.RestartDelay) {
			return
		}
	}
}

func (s *Supervisor) buildCommand(ctx context.Context) *exec.Cmd {
	argv := s.cfg.Command
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		argv = []string{exe, "editor-server"}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", PortEnvVar, s.cfg.Port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// handleEditorMessage resolves pending requests by correlation identifier
// and fails everything in flight when the channel to the editor drops.
func (s *Supervisor) handleEditorMessage(m protocol.Mutation) {
	if m.Type == protocol.TypeEditorDisconnected {
		s.failPending(fmt.Errorf("editor disconnected"))
		return
	}

	id := m.RequestID()
	if id == "" {
		return
	}

	s.mutex.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mutex.Unlock()

	if ok {
		ch <- result{m: m}
	}
}

// failPending settles every in-flight request with a retryable error so
// originators can retry against the next instance.
func (s *Supervisor) failPending(cause error) {
	s.mutex.Lock()
	pending := s.pending
	s.pending = make(map[string]chan result)
	s.mutex.Unlock()

	for _, ch := range pending {
		ch <- result{err: &forgeerrors.RetryableError{Err: cause}}
	}
}

func (s *Supervisor) dropPending(id string) {
	s.mutex.Lock()
	delete(s.pending, id)
	s.mutex.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
