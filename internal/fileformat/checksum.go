package fileformat

import (
	"fmt"
	"strconv"

	xxh3 "github.com/zeebo/xxh3"
)

// DefaultChunk is the checksum granularity used by WriteMatrix.
const DefaultChunk = 64 << 10

// Checksum is the per-section entry of the META checksum index. Hashes are
// hex strings so JSON numbers never lose precision.
type Checksum struct {
	Algo      string   `json:"algo"`
	ChunkSize int      `json:"chunk_size"`
	Count     int      `json:"count"`
	HashesHex []string `json:"hashes_hex"`
}

// RollXXH3 hashes data in consecutive chunks; the last chunk may be short.
func RollXXH3(data []byte, chunk int) []uint64 {
	hashes := make([]uint64, 0, (len(data)+chunk-1)/chunk)
	for i := 0; i < len(data); i += chunk {
		end := min(i+chunk, len(data))
		hashes = append(hashes, xxh3.Hash(data[i:end]))
	}
	return hashes
}

func NewChecksum(data []byte, chunk int) Checksum {
	hs := RollXXH3(data, chunk)
	hx := make([]string, len(hs))
	for i, h := range hs {
		hx[i] = fmt.Sprintf("%016x", h)
	}
	return Checksum{Algo: "xxh3-64", ChunkSize: chunk, Count: len(hs), HashesHex: hx}
}

func (c Checksum) Hashes() ([]uint64, error) {
	out := make([]uint64, len(c.HashesHex))
	for i, s := range c.HashesHex {
		v, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Problem is one checksum failure found by Verify.
type Problem struct {
	Section string
	Chunk   int // -1 when the whole section is affected
	Detail  string
}

func (p Problem) String() string {
	if p.Chunk < 0 {
		return fmt.Sprintf("section %s: %s", p.Section, p.Detail)
	}
	return fmt.Sprintf("section %s: chunk %d %s", p.Section, p.Chunk, p.Detail)
}

// Verify recomputes the checksum of every data section listed in META. An
// error means the file could not be read at all; problems are returned
// separately.
func Verify(r *Reader) ([]Problem, error) {
	meta, err := ReadMeta(r)
	if err != nil {
		return nil, err
	}
	if len(meta.ChecksumIndex) == 0 {
		return nil, fmt.Errorf("no checksum_index in META")
	}
	var probs []Problem
	for _, t := range []uint32{TypeRowPtr, TypeColIdx, TypeValues} {
		name := TypeName(t)
		c, ok := meta.ChecksumIndex[name]
		if !ok {
			probs = append(probs, Problem{Section: name, Chunk: -1, Detail: "missing checksum"})
			continue
		}
		want, err := c.Hashes()
		if err != nil {
			probs = append(probs, Problem{Section: name, Chunk: -1, Detail: err.Error()})
			continue
		}
		data, err := r.SectionUncompressed(t)
		if err != nil {
			probs = append(probs, Problem{Section: name, Chunk: -1, Detail: err.Error()})
			continue
		}
		if c.ChunkSize <= 0 {
			probs = append(probs, Problem{Section: name, Chunk: -1, Detail: "bad chunk size"})
			continue
		}
		have := RollXXH3(data, c.ChunkSize)
		if len(have) != len(want) {
			probs = append(probs, Problem{Section: name, Chunk: -1,
				Detail: fmt.Sprintf("chunk count mismatch have %d want %d", len(have), len(want))})
			continue
		}
		for i := range have {
			if have[i] != want[i] {
				probs = append(probs, Problem{Section: name, Chunk: i, Detail: "mismatch"})
			}
		}
	}
	return probs, nil
}
