package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	Params          TerrainParams `json:"params"`
}

// TerrainParams describes what a GENERATE on this endpoint produces.
type TerrainParams struct {
	Size         [3]int `json:"size"`
	BlockSizes   []int  `json:"block_sizes"`
	Strategy     string `json:"strategy"`
	Policy       string `json:"policy,omitempty"`
	Source       string `json:"source"`
	Seed         uint64 `json:"seed"`
	TuningDigest string `json:"tuning_digest,omitempty"`
}

// GENERATE (client -> server). Seed and Strategy override the server's
// defaults when set.
type GenerateMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id"`
	Seed            *uint64 `json:"seed,omitempty"`
	Strategy        string  `json:"strategy,omitempty"`
}

// BATCH (server -> client): every block of one level.
type BatchMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	RunID           string   `json:"run_id"`
	Level           int      `json:"level"`
	BlockSize       int      `json:"block_size"`
	Positions       [][3]int `json:"positions"`
}

// DONE (server -> client): closes a pass after its batches.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	RunID           string `json:"run_id"`
	Seed            uint64 `json:"seed"`
	Size            [3]int `json:"size"`
	Counts          []int  `json:"counts"`
	Digest          string `json:"digest"`
	FieldDigest     string `json:"field_digest"`
	LevelsRLE       string `json:"levels_rle"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
