package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blockterrain.ai/internal/protocol"
)

// placed is one block a consumer would instantiate.
type placed struct {
	Level     int    `json:"level"`
	BlockSize int    `json:"block_size"`
	Pos       [3]int `json:"pos"`
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "client", "client name")
		seed     = flag.Int64("seed", -1, "seed override (negative uses the server default)")
		strategy = flag.String("strategy", "", "strategy override: eviction|subdivision")
		out      = flag.String("out", "", "write received blocks as JSON to this path")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	req := protocol.GenerateMsg{
		Type:            protocol.TypeGenerate,
		ProtocolVersion: protocol.Version,
		ReqID:           uuid.NewString(),
		Strategy:        *strategy,
	}
	if *seed >= 0 {
		s := uint64(*seed)
		req.Seed = &s
	}

	var blocks []placed
	start := time.Now()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s size=%v block_sizes=%v strategy=%s seed=%d",
				w.SessionID, w.Params.Size, w.Params.BlockSizes, w.Params.Strategy, w.Params.Seed)
			if err := conn.WriteJSON(req); err != nil {
				logger.Fatalf("send GENERATE: %v", err)
			}

		case protocol.TypeBatch:
			var b protocol.BatchMsg
			if err := json.Unmarshal(msg, &b); err != nil || b.ReqID != req.ReqID {
				continue
			}
			logger.Printf("BATCH level=%d block_size=%d blocks=%d", b.Level, b.BlockSize, len(b.Positions))
			for _, p := range b.Positions {
				blocks = append(blocks, placed{Level: b.Level, BlockSize: b.BlockSize, Pos: p})
			}

		case protocol.TypeDone:
			var d protocol.DoneMsg
			if err := json.Unmarshal(msg, &d); err != nil || d.ReqID != req.ReqID {
				continue
			}
			total := 0
			for _, c := range d.Counts {
				total += c
			}
			if total != len(blocks) {
				logger.Fatalf("DONE counts %v sum to %d, received %d blocks", d.Counts, total, len(blocks))
			}
			logger.Printf("DONE run=%s seed=%d counts=%v digest=%s took=%s", d.RunID, d.Seed, d.Counts, d.Digest, time.Since(start))
			if *out != "" {
				if err := writeBlocks(*out, blocks); err != nil {
					logger.Fatalf("write: %v", err)
				}
			}
			return

		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			fmt.Fprintf(os.Stderr, "ERROR %s: %s\n", e.Code, e.Message)
			os.Exit(1)
		}
	}
}

func writeBlocks(path string, blocks []placed) error {
	b, err := json.Marshal(blocks)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
