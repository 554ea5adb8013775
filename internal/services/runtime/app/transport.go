package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/arkomp/internal/platform/timeouts"
	"github.com/louisbranch/arkomp/internal/services/runtime/command"
)

// DefaultMaxFrameBytes bounds a single inbound command frame.
const DefaultMaxFrameBytes = 64 * 1024

// inboundFrame is one complete websocket message.
type inboundFrame struct {
	text bool
	data []byte
}

// frameCodec keeps the frame type so binary frames can be rejected.
var frameCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		data, err := json.Marshal(v)
		return data, websocket.TextFrame, err
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		frame, ok := v.(*inboundFrame)
		if !ok {
			return fmt.Errorf("unexpected frame target %T", v)
		}
		frame.text = payloadType == websocket.TextFrame
		frame.data = append(frame.data[:0], data...)
		return nil
	},
}

// connSet tracks open websocket connections. The HTTP server does not close
// hijacked connections on shutdown, so the server closes them itself.
type connSet struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*websocket.Conn]struct{})}
}

func (s *connSet) add(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *connSet) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *connSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// controlHandler serves the command channel. Origins are not checked: clients are
// controllers, not browsers.
func (s *Server) controlHandler() http.Handler {
	ws := websocket.Server{Handler: s.serveConn}
	return s.verifier.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	}))
}

// serveConn executes one command per text frame and answers each before reading
// the next.
func (s *Server) serveConn(conn *websocket.Conn) {
	conn.MaxPayloadBytes = s.maxFrameBytes
	s.conns.add(conn)
	defer func() {
		s.conns.remove(conn)
		_ = conn.Close()
	}()

	remote := conn.Request().RemoteAddr
	log.Printf("runtime: controller connected remote=%s", remote)
	defer log.Printf("runtime: controller disconnected remote=%s", remote)

	ctx := conn.Request().Context()
	for {
		var frame inboundFrame
		var resp command.Response
		err := frameCodec.Receive(conn, &frame)
		switch {
		case errors.Is(err, websocket.ErrFrameTooLarge):
			resp = command.Error(fmt.Sprintf("Command execution failed: frame exceeds %d bytes", s.maxFrameBytes))
		case err != nil:
			if !errors.Is(err, io.EOF) {
				log.Printf("runtime: read frame remote=%s err=%v", remote, err)
			}
			return
		case !frame.text:
			resp = command.Error("Command execution failed: expected text frame")
		default:
			resp = s.executor.ExecuteJSON(ctx, frame.data)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(timeouts.FrameWrite))
		if err := frameCodec.Send(conn, resp); err != nil {
			log.Printf("runtime: write response remote=%s err=%v", remote, err)
			return
		}
		_ = conn.SetWriteDeadline(time.Time{})
	}
}
