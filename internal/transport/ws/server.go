package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blockterrain.ai/internal/protocol"
	"blockterrain.ai/internal/sim/encoding"
	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/placement"
	"blockterrain.ai/internal/sim/terrain"
)

// Generator produces the passes a connection asks for.
type Generator interface {
	Params() protocol.TerrainParams
	Generate(ctx context.Context, seed *uint64, strategy string) (*terrain.Pass, error)
}

type Server struct {
	gen Generator
	log *log.Logger

	upgrader websocket.Upgrader
	// slots bounds passes running at once across all connections.
	slots chan struct{}
	ctx   context.Context

	passes atomic.Uint64
	busy   atomic.Uint64
}

// NewServer serves passes from gen with at most maxPasses running at once.
// Passes in flight are cancelled when ctx is done.
func NewServer(ctx context.Context, gen Generator, logger *log.Logger, maxPasses int) *Server {
	if maxPasses <= 0 {
		maxPasses = 1
	}
	return &Server{
		gen: gen,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		slots: make(chan struct{}, maxPasses),
		ctx:   ctx,
	}
}

type Stats struct {
	Passes    uint64
	BusyTotal uint64
	InFlight  int
	MaxPasses int
}

func (s *Server) Stats() Stats {
	return Stats{
		Passes:    s.passes.Load(),
		BusyTotal: s.busy.Load(),
		InFlight:  len(s.slots),
		MaxPasses: cap(s.slots),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests on one connection run one after another.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.send(ctx, out, errorMsg("", protocol.ErrProtoBadRequest, "malformed json"))
				continue
			}
			if base.Type != protocol.TypeGenerate {
				s.send(ctx, out, errorMsg("", protocol.ErrProtoBadRequest, "unexpected message type "+base.Type))
				continue
			}
			var req protocol.GenerateMsg
			if err := decodeValid(msg, &req); err != nil {
				s.send(ctx, out, errorMsg("", protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			if req.ProtocolVersion != protocol.Version {
				s.send(ctx, out, errorMsg(req.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version"))
				continue
			}
			s.serve(ctx, sessionID, req, out)
		}

		cancel()
		<-done
	}
}

func (s *Server) serve(ctx context.Context, sessionID string, req protocol.GenerateMsg, out chan<- []byte) {
	select {
	case s.slots <- struct{}{}:
	default:
		s.busy.Add(1)
		s.send(ctx, out, errorMsg(req.ReqID, protocol.ErrBusy, "generator busy"))
		return
	}
	pass, err := s.gen.Generate(ctx, req.Seed, req.Strategy)
	<-s.slots
	if err != nil {
		code := errorCode(err)
		if code == protocol.ErrInternal {
			s.log.Printf("session %s req %s: %v", sessionID, req.ReqID, err)
		}
		s.send(ctx, out, errorMsg(req.ReqID, code, err.Error()))
		return
	}
	s.passes.Add(1)

	for _, b := range pass.Result.Batches {
		pos := make([][3]int, len(b.Positions))
		for i, p := range b.Positions {
			pos[i] = [3]int{p.X, p.Y, p.Z}
		}
		if !s.send(ctx, out, protocol.BatchMsg{
			Type:            protocol.TypeBatch,
			ProtocolVersion: protocol.Version,
			ReqID:           req.ReqID,
			RunID:           pass.ID,
			Level:           b.Level,
			BlockSize:       b.BlockSize,
			Positions:       pos,
		}) {
			return
		}
	}
	sz := pass.Assignment.Size
	s.send(ctx, out, protocol.DoneMsg{
		Type:            protocol.TypeDone,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		RunID:           pass.ID,
		Seed:            pass.Seed,
		Size:            [3]int{sz.X, sz.Y, sz.Z},
		Counts:          pass.Assignment.Counts,
		Digest:          pass.Digest,
		FieldDigest:     pass.FieldDigest,
		LevelsRLE:       encoding.EncodeLevels(pass.Assignment.Levels),
	})
}

func (s *Server) send(ctx context.Context, out chan<- []byte, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("marshal %T: %v", v, err)
		return false
	}
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}
	var hello protocol.HelloMsg
	if err := decodeValid(msg, &hello); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	sessionID := uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Params:          s.gen.Params(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	s.log.Printf("session %s: client=%s", sessionID, hello.ClientName)
	return sessionID, true
}

// decodeValid checks msg against the schema of its type before decoding it
// into v.
func decodeValid(msg []byte, v any) error {
	var doc any
	if err := json.Unmarshal(msg, &doc); err != nil {
		return err
	}
	base, _ := doc.(map[string]any)
	typ, _ := base["type"].(string)
	if err := protocol.Validate(typ, doc); err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, grid.ErrInvalidDimension):
		return protocol.ErrInvalidDimension
	case errors.Is(err, placement.ErrInvalidLevelConfiguration):
		return protocol.ErrInvalidLevels
	default:
		return protocol.ErrInternal
	}
}

func errorMsg(reqID, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
