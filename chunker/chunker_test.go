package chunker

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/prism/iox"
)

// writeTemp writes data to a fresh file under t.TempDir.
func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

// patterned returns n bytes with a non-repeating pattern so chunk
// boundaries are detectable.
func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestTotalParts(t *testing.T) {
	cases := []struct {
		name      string
		size      int64
		chunkSize int
		want      int
	}{
		{"empty file", 0, 2048, 0},
		{"single short chunk", 100, 2048, 1},
		{"exact single chunk", 2048, 2048, 1},
		{"exact multiple", 4096, 2048, 2},
		{"ragged final chunk", 10000, 2048, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TotalParts(tc.size, tc.chunkSize); got != tc.want {
				t.Errorf("TotalParts(%d, %d) = %d, want %d", tc.size, tc.chunkSize, got, tc.want)
			}
		})
	}
}

func TestSource_ChunkLengthsAndOrder(t *testing.T) {
	// 10000 bytes at chunk size 2048: 5 parts, last one 1808 bytes.
	data := patterned(10000)
	src, err := Open(writeTemp(t, data), 2048)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(src))

	var parts []int
	var reassembled []byte
	for src.Next() {
		parts = append(parts, src.Part())
		if src.Part() < 5 && len(src.Data()) != 2048 {
			t.Errorf("part %d length = %d, want 2048", src.Part(), len(src.Data()))
		}
		reassembled = append(reassembled, src.Data()...)
	}
	if err := src.Err(); err != nil {
		t.Fatalf("iteration fault: %v", err)
	}

	if src.TotalParts() != 5 {
		t.Errorf("TotalParts = %d, want 5", src.TotalParts())
	}
	for i, p := range parts {
		if p != i+1 {
			t.Fatalf("parts out of order: %v", parts)
		}
	}
	if len(parts) != 5 {
		t.Fatalf("got %d parts, want 5", len(parts))
	}
	if got := 10000 - 4*2048; got != 1808 {
		t.Fatalf("fixture arithmetic wrong: %d", got)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("concatenated chunks do not reproduce the source bytes")
	}
}

func TestSource_ExactMultipleHasFullFinalChunk(t *testing.T) {
	data := patterned(4096)
	src, err := Open(writeTemp(t, data), 2048)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(src))

	var lengths []int
	for src.Next() {
		lengths = append(lengths, len(src.Data()))
	}
	if len(lengths) != 2 || lengths[0] != 2048 || lengths[1] != 2048 {
		t.Errorf("chunk lengths = %v, want [2048 2048]", lengths)
	}
}

func TestSource_EmptyFile(t *testing.T) {
	src, err := Open(writeTemp(t, nil), 2048)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(src))

	if src.Next() {
		t.Error("Next returned true for empty file")
	}
	if err := src.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-file"), 2048)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatal("expected *SourceError")
	}
	if srcErr.Op != "open" {
		t.Errorf("Op = %q, want open", srcErr.Op)
	}
}

func TestOpen_InvalidChunkSize(t *testing.T) {
	if _, err := Open(writeTemp(t, []byte("x")), 0); err == nil {
		t.Error("Open with chunk size 0 succeeded")
	}
}

// faultySource delivers one full chunk, then a partial read ending in a
// non-EOF fault.
type faultySource struct {
	chunk []byte
	err   error
	calls int
}

func (f *faultySource) Read(p []byte) (int, error) {
	f.calls++
	if f.calls == 1 {
		return copy(p, f.chunk), nil
	}
	return copy(p, f.chunk[:3]), f.err
}

func (f *faultySource) Close() error { return nil }

func TestSource_ReadFaultDoesNotAdvanceAccessors(t *testing.T) {
	src := &Source{
		f:         &faultySource{chunk: []byte("AAAAAAAA"), err: errors.New("device reset")},
		path:      "source.bin",
		chunkSize: 8,
	}
	if !src.Next() {
		t.Fatalf("first chunk not delivered: %v", src.Err())
	}
	if src.Part() != 1 {
		t.Fatalf("Part = %d, want 1", src.Part())
	}

	if src.Next() {
		t.Fatal("Next succeeded past a read fault")
	}
	if !errors.Is(src.Err(), ErrSourceRead) {
		t.Errorf("Err = %v, want ErrSourceRead", src.Err())
	}
	if src.Part() != 1 {
		t.Errorf("Part = %d after fault, want 1", src.Part())
	}
	if !bytes.Equal(src.Data(), []byte("AAAAAAAA")) {
		t.Errorf("Data = %q after fault, want last delivered chunk", src.Data())
	}
	if src.Next() {
		t.Error("Next succeeded after a terminal fault")
	}
}

func TestPartSet(t *testing.T) {
	set := NewPartSet([]int{4, 2, 9})

	if !set.Has(2) || !set.Has(4) || !set.Has(9) {
		t.Error("Has missing selected parts")
	}
	if set.Has(3) {
		t.Error("Has(3) = true for unselected part")
	}
	if got := set.Sorted(); len(got) != 3 || got[0] != 2 || got[1] != 4 || got[2] != 9 {
		t.Errorf("Sorted = %v, want [2 4 9]", got)
	}

	var all PartSet
	if !all.Has(1) || !all.Has(1<<20) {
		t.Error("nil PartSet should select everything")
	}
	if all.Len() != 0 {
		t.Errorf("nil PartSet Len = %d, want 0", all.Len())
	}
}

func TestMissing(t *testing.T) {
	have := map[int][]byte{1: nil, 2: nil, 4: nil}
	got := Missing(4, have)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("Missing = %v, want [3]", got)
	}

	full := map[int][]byte{1: nil, 2: nil}
	if got := Missing(2, full); len(got) != 0 {
		t.Errorf("Missing = %v, want empty", got)
	}
}
