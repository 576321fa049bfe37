package draft

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/prism/log"
)

const chunkSize = 16

func newTestLogger() *log.Logger {
	meta := &log.SessionMeta{SessionID: "test", Role: "receive"}
	return log.NewLogger(meta).WithOutput(io.Discard)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), chunkSize, newTestLogger())
}

// chunkFill returns a full-size chunk of repeated b.
func chunkFill(b byte) []byte {
	return bytes.Repeat([]byte{b}, chunkSize)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill('a'),
		2: chunkFill('b'),
		4: []byte("short tail"), // final part, shorter than chunk size
	}

	result, err := store.Save("data.bin", 4, chunks)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(result.Missing) != 1 || result.Missing[0] != 3 {
		t.Errorf("Missing = %v, want [3]", result.Missing)
	}

	loaded, err := store.Load("data.bin", 4)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d parts, want 3", len(loaded))
	}
	for part, want := range chunks {
		if !bytes.Equal(loaded[part], want) {
			t.Errorf("part %d = %q, want %q", part, loaded[part], want)
		}
	}
	if _, ok := loaded[3]; ok {
		t.Error("missing part 3 reappeared on load")
	}
}

func TestSave_DraftLayout(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill('a'),
		2: chunkFill('b'),
		4: []byte("tail"),
	}

	result, err := store.Save("data.bin", 4, chunks)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(result.DraftPath)
	if err != nil {
		t.Fatalf("reading draft: %v", err)
	}

	// Part 3's region is zero-filled at exactly chunk size.
	if want := 3*chunkSize + len("tail"); len(raw) != want {
		t.Fatalf("draft length = %d, want %d", len(raw), want)
	}
	gap := raw[2*chunkSize : 3*chunkSize]
	if !allZero(gap) {
		t.Error("missing part 3 region is not zero-filled")
	}
	if !bytes.Equal(raw[3*chunkSize:], []byte("tail")) {
		t.Error("final part bytes misplaced")
	}
}

func TestSave_MissingFinalPartNotPadded(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill('a'),
		2: chunkFill('b'),
	}

	result, err := store.Save("data.bin", 3, chunks)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(result.DraftPath)
	if err != nil {
		t.Fatalf("reading draft: %v", err)
	}
	if len(raw) != 2*chunkSize {
		t.Errorf("draft length = %d, want %d (final part never padded)", len(raw), 2*chunkSize)
	}
}

func TestSave_ManifestFormat(t *testing.T) {
	store := newTestStore(t)
	result, err := store.Save("data.bin", 4, map[int][]byte{
		1: chunkFill('a'),
		2: chunkFill('b'),
		4: []byte("t"),
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if doc["filename"] != "data.bin" {
		t.Errorf("filename = %v", doc["filename"])
	}
	if doc["total_parts"] != float64(4) {
		t.Errorf("total_parts = %v", doc["total_parts"])
	}
	missing, ok := doc["missing"].([]any)
	if !ok || len(missing) != 1 || missing[0] != float64(3) {
		t.Errorf("missing = %v, want [3]", doc["missing"])
	}
	if filepath.Base(result.ManifestPath) != ManifestName {
		t.Errorf("manifest file name = %q", filepath.Base(result.ManifestPath))
	}
}

func TestLoad_IndexPreservesAllZeroChunk(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill(0), // legitimate all-zero payload
		3: []byte("tail"),
	}

	if _, err := store.Save("data.bin", 3, chunks); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("data.bin", 3)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded[1]; !ok {
		t.Error("all-zero part 1 lost on indexed load")
	}
	if _, ok := loaded[2]; ok {
		t.Error("missing part 2 resurrected")
	}
}

func TestLoad_FallbackScanWithoutIndex(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill(0),
		2: chunkFill('b'),
		4: []byte("tail"),
	}
	result, err := store.Save("data.bin", 4, chunks)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Simulate a draft written by a tool without presence indexes.
	if err := os.Remove(result.IndexPath); err != nil {
		t.Fatalf("removing index: %v", err)
	}

	loaded, err := store.Load("data.bin", 4)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded[1]; ok {
		t.Error("zero-scan fallback cannot distinguish an all-zero chunk; part 1 should read as absent")
	}
	if !bytes.Equal(loaded[2], chunkFill('b')) {
		t.Error("part 2 lost in fallback scan")
	}
	if !bytes.Equal(loaded[4], []byte("tail")) {
		t.Error("short final part lost in fallback scan")
	}
}

func TestLoad_StaleIndexFallsBack(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Save("data.bin", 3, map[int][]byte{2: chunkFill('b'), 3: []byte("t")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// An index for a different session total must be ignored.
	loaded, err := store.Load("data.bin", 5)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded[1]; ok {
		t.Error("zero region treated as data after stale index fallback")
	}
}

func TestLoad_NoDraft(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.Load("never-seen.bin", 7)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded %d parts from nonexistent draft", len(loaded))
	}
}

func TestWriteRestored_ConcatenatesInOrder(t *testing.T) {
	store := newTestStore(t)
	chunks := map[int][]byte{
		1: chunkFill('a'),
		2: chunkFill('b'),
		3: []byte("end"),
	}

	path, err := store.WriteRestored("data.bin", 3, chunks)
	if err != nil {
		t.Fatalf("WriteRestored failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	want := append(append(chunkFill('a'), chunkFill('b')...), []byte("end")...)
	if !bytes.Equal(raw, want) {
		t.Error("restored bytes do not match chunk order 1..N")
	}
}

func TestWriteRestored_MissingPartFails(t *testing.T) {
	store := newTestStore(t)
	_, err := store.WriteRestored("data.bin", 2, map[int][]byte{1: chunkFill('a')})
	if err == nil {
		t.Fatal("WriteRestored succeeded with a missing part")
	}
}

func TestClear_RemovesAllArtifacts(t *testing.T) {
	store := newTestStore(t)
	result, err := store.Save("data.bin", 2, map[int][]byte{1: chunkFill('a')})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Clear("data.bin"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, path := range []string{result.DraftPath, result.IndexPath, result.ManifestPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still exists after Clear", path)
		}
	}

	// Clearing again is a no-op.
	if err := store.Clear("data.bin"); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)
	doc := `{"filename": "data.bin", "total_parts": 9, "missing": [2, 5, 8]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing manifest fixture: %v", err)
	}

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if m.FileName != "data.bin" || m.TotalParts != 9 || len(m.Missing) != 3 {
		t.Errorf("manifest = %+v", m)
	}
}

func TestReadManifest_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)
	if err := os.WriteFile(path, []byte(`{"missing": []}`), 0o644); err != nil {
		t.Fatalf("writing manifest fixture: %v", err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Error("ReadManifest accepted a manifest without total_parts")
	}
}
