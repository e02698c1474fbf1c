// Command snaptool inspects world snapshot files: prints the header without
// decompressing, validates the full document against the schema, and
// optionally decodes every stored chunk to flag corrupt entries.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/codeyousef/voxelstream/internal/persistence/snapshot"
	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

func main() {
	var (
		headerOnly = flag.Bool("header", false, "print only the header line (no decompression)")
		decode     = flag.Bool("decode", false, "decode every stored chunk and report corrupt entries")
		asJSON     = flag.Bool("json", false, "emit the summary as json")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: snaptool [flags] <snapshot file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	logger := log.New(os.Stderr, "[snaptool] ", 0)

	if *headerOnly {
		hdr, err := snapshot.ReadHeader(path)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		emit(*asJSON, hdr, func() {
			fmt.Printf("version:  %d\n", hdr.Version)
			fmt.Printf("world:    %s\n", hdr.WorldID)
			fmt.Printf("tick:     %d\n", hdr.Tick)
			fmt.Printf("saved_at: %s\n", hdr.SavedAt)
		})
		return
	}

	snap, err := snapshot.Read(path)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	sum := summary{
		Header:         snap.Header,
		Seed:           snap.Seed,
		Observer:       snap.ObserverPosition,
		Orientation:    snap.ObserverOrientation,
		FlightMode:     snap.FlightMode,
		ModifiedChunks: len(snap.ModifiedChunks),
	}

	if *decode {
		for _, cv := range snap.ModifiedChunks {
			pos, err := coords.New(cv.CX, cv.CZ)
			if err != nil {
				sum.Corrupt = append(sum.Corrupt, corruptEntry{CX: cv.CX, CZ: cv.CZ, Err: err.Error()})
				continue
			}
			c := chunk.New(pos)
			if err := c.Decode(cv.Blocks); err != nil {
				sum.Corrupt = append(sum.Corrupt, corruptEntry{CX: cv.CX, CZ: cv.CZ, Err: err.Error()})
				continue
			}
			sum.SolidCells += chunk.Cells - c.Count(block.Air)
			sum.EncodedBytes += len(cv.Blocks)
		}
		sum.Decoded = true
	}

	emit(*asJSON, sum, func() {
		fmt.Printf("version:         %d\n", sum.Header.Version)
		fmt.Printf("world:           %s\n", sum.Header.WorldID)
		fmt.Printf("tick:            %d\n", sum.Header.Tick)
		fmt.Printf("saved_at:        %s\n", sum.Header.SavedAt)
		fmt.Printf("seed:            %d\n", sum.Seed)
		fmt.Printf("observer:        (%.2f, %.2f, %.2f) pitch=%.1f yaw=%.1f flight=%v\n",
			sum.Observer.X, sum.Observer.Y, sum.Observer.Z,
			sum.Orientation.Pitch, sum.Orientation.Yaw, sum.FlightMode)
		fmt.Printf("modified_chunks: %d\n", sum.ModifiedChunks)
		if sum.Decoded {
			fmt.Printf("solid_cells:     %d\n", sum.SolidCells)
			fmt.Printf("encoded_bytes:   %d\n", sum.EncodedBytes)
			fmt.Printf("corrupt:         %d\n", len(sum.Corrupt))
			for _, c := range sum.Corrupt {
				fmt.Printf("  (%d,%d): %s\n", c.CX, c.CZ, c.Err)
			}
		}
	})

	if len(sum.Corrupt) > 0 {
		os.Exit(1)
	}
}

type summary struct {
	Header         snapshot.Header      `json:"header"`
	Seed           int64                `json:"seed"`
	Observer       snapshot.Vec3        `json:"observer_position"`
	Orientation    snapshot.Orientation `json:"observer_orientation"`
	FlightMode     bool                 `json:"flight_mode"`
	ModifiedChunks int                  `json:"modified_chunks"`

	Decoded      bool           `json:"decoded,omitempty"`
	SolidCells   int            `json:"solid_cells,omitempty"`
	EncodedBytes int            `json:"encoded_bytes,omitempty"`
	Corrupt      []corruptEntry `json:"corrupt,omitempty"`
}

type corruptEntry struct {
	CX  int    `json:"chunk_x"`
	CZ  int    `json:"chunk_z"`
	Err string `json:"error"`
}

func emit(asJSON bool, v any, plain func()) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	plain()
}
