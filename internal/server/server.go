// Package server implements the command interface spec.md §6 contracts:
// newline-delimited JSON commands over a stream socket, every command
// carrying `name_`/`type_`, every response one of "Found!", "Success!",
// an error string, or a JSON payload.
//
// Grounded on the teacher's cmd/smf cobra dispatch: a small, flat
// dispatch table keyed by command name, each entry a thin function
// translating a parsed request into a call against the shared engine
// and formatting its result — the same shape as smf's subcommand ->
// runX() split, here keyed by `type_` instead of a cobra subcommand.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"go.uber.org/zap"

	"relfit/internal/engine"
	"relfit/internal/engineerr"
)

// Server dispatches newline-delimited JSON commands against a shared
// engine.Engine. The zero value is not usable; construct with New.
type Server struct {
	Engine *engine.Engine
	Log    *zap.Logger

	handlers map[string]Handler
}

// Handler processes one command's raw JSON body and returns a value to
// encode back to the client: a string is written bare (matching
// spec.md's "Found!"/"Success!"/error-string responses), anything else
// is JSON-encoded as a payload.
type Handler func(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error)

// envelope is the shape every command carries (spec.md §6: "Every
// command carries name_ and type_").
type envelope struct {
	Name string `json:"name_"`
	Type string `json:"type_"`
}

// New constructs a Server with the built-in command handlers
// registered (see handlers.go). log may be nil, in which case a no-op
// logger is used.
func New(e *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{Engine: e, Log: log, handlers: make(map[string]Handler)}
	registerBuiltins(s)
	return s
}

// Register adds or replaces the handler for a command type_.
func (s *Server) Register(typ string, h Handler) {
	s.handlers[typ] = h
}

// Serve accepts connections on addr until ctx is cancelled, handling
// each on its own goroutine. It blocks until the listener is closed.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return engineerr.Newf(engineerr.IoError, "server: listen %s: %v", addr, err)
	}
	s.Log.Info("server: listening", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return engineerr.Newf(engineerr.IoError, "server: accept: %v", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.dispatch(ctx, line)
		if err := writeLine(w, resp); err != nil {
			s.Log.Warn("server: write response failed", zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			s.Log.Warn("server: flush failed", zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.Log.Warn("server: read failed", zap.Error(err))
	}
}

// dispatch decodes one line as an envelope, looks up its handler by
// Type, and returns whatever the handler (or decode/lookup failure)
// produces.
func (s *Server) dispatch(ctx context.Context, line []byte) any {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return err.Error()
	}

	h, ok := s.handlers[env.Type]
	if !ok {
		return engineerr.Newf(engineerr.InvalidArgument, "server: unknown command type %q", env.Type).Error()
	}

	result, err := h(ctx, s.Engine, line)
	if err != nil {
		return err.Error()
	}
	return result
}

func writeLine(w *bufio.Writer, v any) error {
	switch r := v.(type) {
	case string:
		if _, err := w.WriteString(r); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(w)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return nil // Encode already appended a newline
	}
	_, err := w.WriteString("\n")
	return err
}
