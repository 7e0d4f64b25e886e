package fileformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterReaderWithCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csrb")
	meta := []byte(`{"hello":"world"}`)
	raw := bytes.Repeat([]byte{1, 2, 3, 4}, 1024)
	zst := bytes.Repeat([]byte{5, 6, 7, 8}, 2048)

	w := NewWriter()
	w.AddSection(TypeMeta, meta, 0)
	w.AddSection(TypeRowPtr, raw, FlagCompLZ4)
	w.AddSection(TypeColIdx, zst, FlagCompZSTD)
	if err := w.Write(path); err != nil {
		t.Fatalf("write error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	head := make([]byte, 8)
	if _, err := f.Read(head); err != nil {
		t.Fatalf("read head: %v", err)
	}
	if !IsContainer(head) {
		t.Fatalf("bad magic: %q", string(head))
	}
	var hdr header
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("read hdr: %v", err)
	}
	if hdr.Num != 3 || hdr.Ver != Version {
		t.Fatalf("header %+v", hdr)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer r.Close()
	for _, e := range r.TOC {
		if e.Offset%align != 0 {
			t.Fatalf("section %s at unaligned offset %d", TypeName(e.TypeID), e.Offset)
		}
	}
	if st, _ := f.Stat(); st.Size()%align != 0 {
		t.Fatalf("file size %d not aligned", st.Size())
	}

	for _, tc := range []struct {
		typ  uint32
		want []byte
	}{{TypeMeta, meta}, {TypeRowPtr, raw}, {TypeColIdx, zst}} {
		got, err := r.SectionUncompressed(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", TypeName(tc.typ), err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("%s mismatch", TypeName(tc.typ))
		}
	}
	stored, _ := r.Section(TypeColIdx)
	if len(stored) >= len(zst) {
		t.Fatalf("zstd section not compressed: %d bytes", len(stored))
	}
	if _, err := r.Section(TypeValues); err == nil {
		t.Fatal("expected missing section error")
	}
}

func TestOpenRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.csr")
	if err := os.WriteFile(path, []byte("3 3 3\n0 1 2 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-container file")
	}
}

func TestWriterNoSections(t *testing.T) {
	if err := NewWriter().Write(filepath.Join(t.TempDir(), "x.csrb")); err == nil {
		t.Fatal("expected error")
	}
}

func writeRaw(t *testing.T, num uint32, toc []TOCEntry) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Magic[:])
	binary.Write(&buf, binary.LittleEndian, header{Ver: Version, Num: num})
	for i := range toc {
		binary.Write(&buf, binary.LittleEndian, &toc[i])
	}
	path := filepath.Join(t.TempDir(), "corrupt.csrb")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenRejectsTOCPastEOF(t *testing.T) {
	path := writeRaw(t, 0xFFFFFFFF, nil)
	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func TestOpenRejectsSectionPastEOF(t *testing.T) {
	for _, e := range []TOCEntry{
		{TypeID: TypeMeta, Offset: 4096, Size: 1 << 62},
		{TypeID: TypeMeta, Offset: 1 << 63, Size: 1},
		{TypeID: TypeMeta, Offset: 8, Size: ^uint64(0)},
	} {
		path := writeRaw(t, 1, []TOCEntry{e})
		if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("entry %+v: want ErrCorrupt, got %v", e, err)
		}
	}
}
