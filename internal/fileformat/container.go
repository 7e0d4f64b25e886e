// Package fileformat implements the CSRB container: a sectioned binary file
// with a table of contents, 4 KiB aligned payloads and optional per-section
// zstd or lz4 compression.
package fileformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"
)

// Magic opens every container file.
var Magic = [8]byte{'C', 'S', 'R', 'B', 0, 0, 0, 0}

const Version = 1

const (
	TypeMeta   uint32 = 1
	TypeRowPtr uint32 = 2
	TypeColIdx uint32 = 3
	TypeValues uint32 = 4
)

const (
	FlagCompZSTD uint32 = 1 << 0
	FlagCompLZ4  uint32 = 1 << 1
)

const align = 4096

var ErrNotContainer = errors.New("not a CSRB file")

// IsContainer reports whether head starts with Magic.
func IsContainer(head []byte) bool {
	return len(head) >= len(Magic) && bytes.Equal(head[:len(Magic)], Magic[:])
}

// TypeName returns a section's display name.
func TypeName(t uint32) string {
	switch t {
	case TypeMeta:
		return "META"
	case TypeRowPtr:
		return "ROW_PTR"
	case TypeColIdx:
		return "COL_IDX"
	case TypeValues:
		return "VALUES"
	}
	return fmt.Sprintf("TYPE_%d", t)
}

type header struct{ Ver, Num, Res uint32 }

// TOCEntry locates one section. Size is the stored (possibly compressed) size.
type TOCEntry struct {
	TypeID uint32
	Offset uint64
	Size   uint64
	Flags  uint32
}

const tocSize = 4 + 8 + 8 + 4

type section struct {
	typeID uint32
	data   []byte
	flags  uint32
}

type Writer struct {
	sections []section
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) AddSection(t uint32, data []byte, flags uint32) {
	w.sections = append(w.sections, section{typeID: t, data: data, flags: flags})
}

func zstdEncode(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func zstdDecode(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}

func lz4Encode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(b))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(data []byte, flags uint32) ([]byte, error) {
	switch {
	case flags&FlagCompZSTD != 0:
		return zstdEncode(data)
	case flags&FlagCompLZ4 != 0:
		return lz4Encode(data)
	}
	return data, nil
}

func decode(data []byte, flags uint32) ([]byte, error) {
	switch {
	case flags&FlagCompZSTD != 0:
		return zstdDecode(data)
	case flags&FlagCompLZ4 != 0:
		return lz4Decode(data)
	}
	return data, nil
}

func alignUp(x, a int64) int64 {
	if r := x % a; r != 0 {
		return x + (a - r)
	}
	return x
}

// Write creates path and writes the header, TOC and sections.
func (w *Writer) Write(path string) error {
	if len(w.sections) == 0 {
		return errors.New("fileformat: no sections")
	}
	payloads := make([][]byte, len(w.sections))
	for i, s := range w.sections {
		p, err := encode(s.data, s.flags)
		if err != nil {
			return fmt.Errorf("encode %s: %w", TypeName(s.typeID), err)
		}
		payloads[i] = p
	}

	toc := make([]TOCEntry, len(w.sections))
	offset := alignUp(int64(len(Magic)+12+tocSize*len(w.sections)), align)
	for i, s := range w.sections {
		toc[i] = TOCEntry{TypeID: s.typeID, Offset: uint64(offset), Size: uint64(len(payloads[i])), Flags: s.flags}
		offset = alignUp(offset+int64(len(payloads[i])), align)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeAll(f, toc, payloads); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeAll(f *os.File, toc []TOCEntry, payloads [][]byte) error {
	if _, err := f.Write(Magic[:]); err != nil {
		return err
	}
	hdr := header{Ver: Version, Num: uint32(len(toc))}
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	for i := range toc {
		if err := binary.Write(f, binary.LittleEndian, &toc[i]); err != nil {
			return err
		}
	}
	for i, e := range toc {
		if _, err := f.WriteAt(payloads[i], int64(e.Offset)); err != nil {
			return err
		}
	}
	// Pad the last section so the file length is aligned too.
	last := toc[len(toc)-1]
	return f.Truncate(alignUp(int64(last.Offset+last.Size), align))
}

type Reader struct {
	f   *os.File
	Ver uint32
	TOC []TOCEntry
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := readHeader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ErrCorrupt is wrapped when the header or TOC points outside the file.
var ErrCorrupt = errors.New("corrupt CSRB file")

func readHeader(f *os.File, size int64) (*Reader, error) {
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, err
	}
	if !IsContainer(head) {
		return nil, ErrNotContainer
	}
	var hdr header
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Ver != Version {
		return nil, fmt.Errorf("unsupported CSRB version %d", hdr.Ver)
	}
	tocEnd := int64(len(Magic)+12) + int64(hdr.Num)*tocSize
	if tocEnd > size {
		return nil, fmt.Errorf("%w: %d TOC entries need %d bytes, file has %d", ErrCorrupt, hdr.Num, tocEnd, size)
	}
	toc := make([]TOCEntry, hdr.Num)
	for i := range toc {
		if err := binary.Read(f, binary.LittleEndian, &toc[i]); err != nil {
			return nil, err
		}
		e := toc[i]
		if e.Offset > uint64(size) || e.Size > uint64(size)-e.Offset {
			return nil, fmt.Errorf("%w: section %s at %d+%d past end of file (%d bytes)",
				ErrCorrupt, TypeName(e.TypeID), e.Offset, e.Size, size)
		}
	}
	return &Reader{f: f, Ver: hdr.Ver, TOC: toc}, nil
}

func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) entry(typeID uint32) (TOCEntry, error) {
	for _, e := range r.TOC {
		if e.TypeID == typeID {
			return e, nil
		}
	}
	return TOCEntry{}, fmt.Errorf("section %s not found", TypeName(typeID))
}

// Section returns the stored bytes of a section without decompressing.
func (r *Reader) Section(typeID uint32) ([]byte, error) {
	e, err := r.entry(typeID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	if _, err := r.f.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("read %s: %w", TypeName(typeID), err)
	}
	return buf, nil
}

// SectionUncompressed returns the payload, decompressed according to flags.
func (r *Reader) SectionUncompressed(typeID uint32) ([]byte, error) {
	e, err := r.entry(typeID)
	if err != nil {
		return nil, err
	}
	raw, err := r.Section(typeID)
	if err != nil {
		return nil, err
	}
	out, err := decode(raw, e.Flags)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", TypeName(typeID), err)
	}
	return out, nil
}
