// Package stream publishes per-tick simulation snapshots to HTTP clients
// over server-sent events. Each snapshot is serialized once and fanned out
// to every subscriber of the "snapshot" stream; slow clients miss events
// rather than stalling the simulation loop.
package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"

	"github.com/signalsfoundry/interlocking-simulator/core"
	"github.com/signalsfoundry/interlocking-simulator/internal/logging"
)

const snapshotStream = "snapshot"

// Server bridges simulation snapshots onto an SSE endpoint.
type Server struct {
	s   *sse.Server
	log logging.Logger
}

// NewServer creates the SSE server and its snapshot stream.
func NewServer(log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(snapshotStream)
	return &Server{s: s, log: log}
}

// Publish serializes a snapshot and offers it to all current subscribers.
// Intended to be registered as a tick listener on the simulation engine.
func (s *Server) Publish(snap core.SimulationSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Error(context.Background(), "stream: marshal snapshot", logging.Err(err), logging.Tick(snap.Tick))
		return
	}
	s.s.TryPublish(snapshotStream, &sse.Event{Data: data})
}

// Close tears down the stream and disconnects subscribers.
func (s *Server) Close() {
	s.s.RemoveStream(snapshotStream)
	s.s.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}
