package fileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/qrv0/spmv/internal/sparse"
)

// Meta is the JSON document stored in the META section.
type Meta struct {
	FormatVersion int                 `json:"format_version"`
	Author        string              `json:"author"`
	NumRows       int                 `json:"num_rows"`
	NumCols       int                 `json:"num_cols"`
	NumNonzeros   int                 `json:"num_nonzeros"`
	ChecksumIndex map[string]Checksum `json:"checksum_index,omitempty"`
}

func ReadMeta(r *Reader) (*Meta, error) {
	b, err := r.SectionUncompressed(TypeMeta)
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("META: %w", err)
	}
	return &m, nil
}

func putU32s(s []uint32) []byte {
	out := make([]byte, 0, 4*len(s))
	for _, v := range s {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

func putF32s(s []float32) []byte {
	out := make([]byte, 0, 4*len(s))
	for _, v := range s {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func getU32s(b []byte, n int, name string) ([]uint32, error) {
	if len(b) != 4*n {
		return nil, fmt.Errorf("%s: %d bytes, want %d", name, len(b), 4*n)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out, nil
}

// WriteMatrix stores m at path. flags applies to the three array sections;
// META is always stored raw.
func WriteMatrix(path string, m *sparse.CSR, flags uint32) error {
	rowPtr, colIdx, values := putU32s(m.RowPtr), putU32s(m.ColIdx), putF32s(m.Values)
	meta := Meta{
		FormatVersion: Version,
		Author:        "spmv",
		NumRows:       m.NumRows,
		NumCols:       m.NumCols,
		NumNonzeros:   m.NumNonzeros,
		ChecksumIndex: map[string]Checksum{
			TypeName(TypeRowPtr): NewChecksum(rowPtr, DefaultChunk),
			TypeName(TypeColIdx): NewChecksum(colIdx, DefaultChunk),
			TypeName(TypeValues): NewChecksum(values, DefaultChunk),
		},
	}
	mb, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	w := NewWriter()
	w.AddSection(TypeMeta, mb, 0)
	w.AddSection(TypeRowPtr, rowPtr, flags)
	w.AddSection(TypeColIdx, colIdx, flags)
	w.AddSection(TypeValues, values, flags)
	return w.Write(path)
}

// ReadMatrix loads a CSR matrix from a container and checks its invariants.
func ReadMatrix(path string) (*sparse.CSR, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	meta, err := ReadMeta(r)
	if err != nil {
		return nil, err
	}
	if meta.NumRows < 0 || meta.NumCols < 0 || meta.NumNonzeros < 0 {
		return nil, fmt.Errorf("META: negative dimension")
	}

	m := &sparse.CSR{NumRows: meta.NumRows, NumCols: meta.NumCols, NumNonzeros: meta.NumNonzeros}
	b, err := r.SectionUncompressed(TypeRowPtr)
	if err != nil {
		return nil, err
	}
	if m.RowPtr, err = getU32s(b, meta.NumRows+1, "ROW_PTR"); err != nil {
		return nil, err
	}
	if b, err = r.SectionUncompressed(TypeColIdx); err != nil {
		return nil, err
	}
	if m.ColIdx, err = getU32s(b, meta.NumNonzeros, "COL_IDX"); err != nil {
		return nil, err
	}
	if b, err = r.SectionUncompressed(TypeValues); err != nil {
		return nil, err
	}
	bits, err := getU32s(b, meta.NumNonzeros, "VALUES")
	if err != nil {
		return nil, err
	}
	m.Values = make([]float32, len(bits))
	for i, v := range bits {
		m.Values[i] = math.Float32frombits(v)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
