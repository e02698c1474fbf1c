package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/codeyousef/voxelstream/internal/sim/block"
)

// ErrCorruptData reports an RLE payload that does not reconstruct exactly
// one chunk volume.
var ErrCorruptData = errors.New("corrupt chunk data")

// Encode compresses the flat block array into varint (id, run) pairs. An
// all-default chunk collapses to a single run of 4 raw bytes.
func (c *Chunk) Encode() []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < Cells {
		b := c.blocks[i]
		run := 1
		for j := i + 1; j < Cells && c.blocks[j] == b; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

// Decode replaces the chunk's block contents from an RLE payload. The runs
// must cover exactly 65,536 cells; anything else is ErrCorruptData. Unknown
// block ids are not an error and decode to the default block.
//
// Flags are left untouched; the caller decides what a decoded chunk means.
func (c *Chunk) Decode(data []byte) error {
	blocks := make([]block.Type, 0, Cells)
	for i := 0; i < len(data); {
		id, n := binary.Uvarint(data[i:])
		if n <= 0 {
			return fmt.Errorf("bad varint at %d: %w", i, ErrCorruptData)
		}
		i += n
		run, n := binary.Uvarint(data[i:])
		if n <= 0 {
			return fmt.Errorf("bad varint at %d: %w", i, ErrCorruptData)
		}
		i += n

		if run == 0 || run > Cells || len(blocks)+int(run) > Cells {
			return fmt.Errorf("run of %d overflows chunk: %w", run, ErrCorruptData)
		}
		t := block.Default
		if id <= 0xFF {
			t = block.FromID(uint8(id))
		}
		for k := 0; k < int(run); k++ {
			blocks = append(blocks, t)
		}
	}
	if len(blocks) != Cells {
		return fmt.Errorf("decoded %d cells, want %d: %w", len(blocks), Cells, ErrCorruptData)
	}
	c.blocks = blocks
	return nil
}
