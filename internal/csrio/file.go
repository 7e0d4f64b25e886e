package csrio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"

	"github.com/qrv0/spmv/internal/fileformat"
	"github.com/qrv0/spmv/internal/sparse"
)

// Codec identifies the stream compression of a text matrix file.
type Codec uint8

const (
	Raw Codec = iota
	ZSTD
	LZ4
)

func (c Codec) String() string {
	switch c {
	case ZSTD:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return "raw"
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// CodecFor picks the codec from the file suffix.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return ZSTD
	case ".lz4":
		return LZ4
	}
	return Raw
}

func sniff(head []byte) Codec {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return ZSTD
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	}
	return Raw
}

// IsContainer reports whether path holds a CSRB container, by content or by
// the .csrb suffix.
func IsContainer(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".csrb") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(fileformat.Magic))
	n, _ := io.ReadFull(f, head)
	return fileformat.IsContainer(head[:n])
}

// Load reads a matrix from path. CSRB containers are detected by their magic;
// text files may be zstd or lz4 compressed, detected by suffix or content.
func Load(path string) (*sparse.CSR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(len(fileformat.Magic))
	if fileformat.IsContainer(head) {
		return fileformat.ReadMatrix(path)
	}

	codec := CodecFor(path)
	if c := sniff(head); c != Raw {
		codec = c
	}
	var r io.Reader = br
	switch codec {
	case ZSTD:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	case LZ4:
		r = lz4.NewReader(br)
	}

	m, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path. A .csrb suffix produces an uncompressed container;
// otherwise the text format is written, compressed according to CodecFor.
func Save(path string, m *sparse.CSR) error {
	if strings.EqualFold(filepath.Ext(path), ".csrb") {
		return fileformat.WriteMatrix(path, m, 0)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, m, CodecFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, m *sparse.CSR, codec Codec) error {
	switch codec {
	case ZSTD:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := Write(enc, m); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case LZ4:
		enc := lz4.NewWriter(w)
		if err := Write(enc, m); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return Write(w, m)
}
