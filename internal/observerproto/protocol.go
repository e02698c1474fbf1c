// Package observerproto defines the JSON messages exchanged with an
// observer client over the websocket feed. The observer drives the
// streaming window with POSE updates and receives STATUS frames back.
package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// Message type tags.
const (
	TypeHello  = "HELLO"
	TypePose   = "POSE"
	TypeStatus = "STATUS"
)

// Client -> Server. First message on the connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name,omitempty"`
}

// HTTP response for GET /observer/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz   int   `json:"tick_rate_hz"`
	ChunkSize    int   `json:"chunk_size"`
	Height       int   `json:"height"`
	Seed         int64 `json:"seed"`
	StreamRadius int   `json:"stream_radius"`
}

// Client -> Server. Observer pose update; the world recenters its
// streaming window on the reported position.
type PoseMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Z               float64 `json:"z"`
	Pitch           float64 `json:"pitch"`
	Yaw             float64 `json:"yaw"`
	Flight          bool    `json:"flight"`
}

// Server -> Client. Periodic world status frame.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	LoadedChunks    int `json:"loaded_chunks"`
	QueuedGen       int `json:"queued_gen"`
	LoadTarget      int `json:"load_target"`
	LoadDone        int `json:"load_done"`
	RegenTarget     int `json:"regen_target"`
	RegenDone       int `json:"regen_done"`
	SnapshotDropped int `json:"snapshot_dropped,omitempty"`
}
