// Package editor implements the supervised editor server process. It dials
// the build host's broadcast hub, announces itself with EDITOR_CONNECTED,
// and services edit actions against an in-memory working set of assets.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/assetforge/assetforge/internal/channel"
	"github.com/assetforge/assetforge/internal/devstate"
	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/protocol"
)

// Domain action types serviced by the editor.
const (
	// TypeMapEdit applies an incremental tile edit to a map working copy.
	TypeMapEdit = "MAP_EDIT"
	// TypeMapEditApplied acknowledges a MAP_EDIT back to its originator.
	TypeMapEditApplied = "MAP_EDIT_APPLIED"
)

const (
	workingSetTTL   = 5 * time.Minute
	writeBackPeriod = 10 * time.Second
)

// Server is one editor instance. The supervisor replaces the whole process
// on crash or requested restart; nothing here survives an exit except what
// Flush wrote to disk.
type Server struct {
	channel *channel.EditorChannel
	state   *devstate.DevState
	logger  logging.Logger

	mutex      sync.Mutex
	outputRoot string

	done chan struct{}
	once sync.Once
}

// New prepares an editor server that will dial the hub on the given port.
func New(port int, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		state:  devstate.New(workingSetTTL, writeBackPeriod, logger),
		logger: logger.WithScope("editor"),
		done:   make(chan struct{}),
	}

	url := fmt.Sprintf("ws://127.0.0.1:%d/live", port)
	s.channel = channel.Dial(url, &channel.Options{
		Logger: logger,
		// EDITOR_CONNECTED must be the first message on every fresh
		// connection, ahead of any buffered traffic.
		OnOpen: func() {
			s.channel.Send(protocol.EditorConnected())
		},
	})
	s.channel.OnMessage(s.handle)
	return s
}

// Run serves until ctx is cancelled or a RESTART asks the instance to wind
// down. A nil return means state was flushed and the process should exit 0.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.state.Start(runCtx)
	s.channel.Start(runCtx)

	select {
	case <-ctx.Done():
		return s.state.Flush()
	case <-s.done:
		s.logger.Info("restart requested, state flushed, exiting")
		return nil
	}
}

func (s *Server) handle(m protocol.Mutation) {
	switch m.Type {
	case protocol.TypeInit:
		s.mutex.Lock()
		s.outputRoot = m.String("outputRoot")
		s.mutex.Unlock()
		s.logger.Info("initialized", "outputRoot", m.String("outputRoot"))

	case protocol.TypeRestart:
		// Persist everything before the supervisor replaces us.
		if err := s.state.Flush(); err != nil {
			s.logger.Error(err, "flushing working set before restart")
		}
		s.once.Do(func() { close(s.done) })

	case protocol.TypeEditorDisconnected:
		// Channel-level signal; the channel reconnects on its own.

	case TypeMapEdit:
		s.applyMapEdit(m)

	default:
		s.logger.Debug("unhandled action", "type", m.Type)
	}
}

// applyMapEdit updates the map working copy and acknowledges the request.
func (s *Server) applyMapEdit(m protocol.Mutation) {
	name := m.String("map")
	if name == "" {
		s.logger.Warn(nil, "map edit without map name")
		return
	}

	s.mutex.Lock()
	root := s.outputRoot
	s.mutex.Unlock()

	data, err := json.Marshal(m.Payload)
	if err != nil {
		s.logger.Error(err, "encoding map working copy", "map", name)
		return
	}
	s.state.Put(name, filepath.Join(root, "maps", name+".json"), data)

	if id := m.RequestID(); id != "" {
		ack := protocol.NewWith(TypeMapEditApplied, map[string]interface{}{"map": name})
		s.channel.Send(ack.WithRequestID(id))
	}
	// Other connected clients learn about the edit through the hub.
	s.channel.Send(protocol.ReloadMap(name))
}
