// Package snapshot reads and writes world snapshot files: a JSON header
// line followed by a zstd-compressed JSON document holding the seed, the
// observer pose and the RLE-encoded player-modified chunks.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Version is the current snapshot document version.
const Version = 1

//go:embed snapshot.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("snapshot.schema.json", schemaJSON)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	SavedAt string `json:"saved_at,omitempty"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Orientation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ChunkV1 is one player-modified chunk. Blocks holds the chunk codec's RLE
// bytes; encoding/json renders them as base64.
type ChunkV1 struct {
	CX     int    `json:"chunk_x"`
	CZ     int    `json:"chunk_z"`
	Blocks []byte `json:"encoded_blocks"`
}

// SnapshotV1 is sufficient to reconstruct a world: replay the seed for
// baseline terrain, then apply the modified chunks.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed                int64       `json:"seed"`
	ObserverPosition    Vec3        `json:"observer_position"`
	ObserverOrientation Orientation `json:"observer_orientation"`
	FlightMode          bool        `json:"flight_mode"`

	ModifiedChunks []ChunkV1 `json:"modified_chunks"`
}

// Validate checks a raw snapshot JSON document against the embedded schema.
func Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("snapshot json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("snapshot schema: %w", err)
	}
	return nil
}

// Write stores a snapshot at path (creating parent directories), as a plain
// JSON header line followed by the zstd-compressed document.
func Write(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(hb, '\n')); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	return nil
}

// Read loads, schema-checks and decodes a snapshot file.
func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	// Header line is uncompressed so tooling can peek without decompressing.
	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return snap, fmt.Errorf("snapshot body: %w", err)
	}
	if err := Validate(raw); err != nil {
		return snap, err
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("snapshot decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the uncompressed header line.
func ReadHeader(path string) (Header, error) {
	var hdr Header
	f, err := os.Open(path)
	if err != nil {
		return hdr, err
	}
	defer f.Close()

	hb, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil {
		return hdr, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return hdr, fmt.Errorf("snapshot header: %w", err)
	}
	return hdr, nil
}
