// Package draft persists partial transfer sessions so a failed broadcast
// can be completed by a second, remediation-only pass.
//
// Three artifacts live next to each other in the store directory:
//
//	DRAFT_<file>       the partial byte image, gaps zero-filled
//	DRAFT_<file>.idx   msgpack presence index (which parts are real)
//	missing_parts.json remediation manifest consumed by the sender
//
// The zero-filled draft alone is ambiguous: a legitimate all-zero chunk is
// indistinguishable from a gap. The presence index resolves that; the
// zero-stride scan remains as a fallback for drafts written without one.
package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/prism/chunker"
	"github.com/pithecene-io/prism/iox"
	"github.com/pithecene-io/prism/log"
)

// ManifestName is the fixed remediation manifest file name, shared with the
// sender's --remediate flag.
const ManifestName = "missing_parts.json"

// Manifest is the persisted record of a failed or partial session.
type Manifest struct {
	FileName   string `json:"filename"`
	TotalParts int    `json:"total_parts"`
	Missing    []int  `json:"missing"`
}

// presenceIndex is the msgpack sidecar recording which draft regions carry
// real data.
type presenceIndex struct {
	FileName   string `msgpack:"file_name"`
	TotalParts int    `msgpack:"total_parts"`
	Parts      []int  `msgpack:"parts"`
}

// SaveResult reports the artifacts written by Save.
type SaveResult struct {
	DraftPath    string
	IndexPath    string
	ManifestPath string
	Missing      []int
}

// Store reads and writes session artifacts under one directory.
type Store struct {
	dir       string
	chunkSize int
	logger    *log.Logger
}

// NewStore creates a draft store. An empty dir means the working directory.
func NewStore(dir string, chunkSize int, logger *log.Logger) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, chunkSize: chunkSize, logger: logger}
}

// DraftPath returns the draft file path for fileName.
func (s *Store) DraftPath(fileName string) string {
	return filepath.Join(s.dir, "DRAFT_"+fileName)
}

// IndexPath returns the presence index path for fileName.
func (s *Store) IndexPath(fileName string) string {
	return s.DraftPath(fileName) + ".idx"
}

// ManifestPath returns the remediation manifest path.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.dir, ManifestName)
}

// RestoredPath returns the final output path for fileName.
func (s *Store) RestoredPath(fileName string) string {
	return filepath.Join(s.dir, "RESTORED_"+fileName)
}

// Save persists the session's chunks as a draft, presence index, and
// remediation manifest. Chunks are written in ascending part order; absent
// non-final parts become zero-filled regions of exactly the chunk size; an
// absent final part is never padded, to avoid length ambiguity.
func (s *Store) Save(fileName string, totalParts int, chunks map[int][]byte) (*SaveResult, error) {
	missing := chunker.Missing(totalParts, chunks)

	draftPath := s.DraftPath(fileName)
	f, err := os.Create(draftPath)
	if err != nil {
		return nil, fmt.Errorf("creating draft %s: %w", draftPath, err)
	}
	zeros := make([]byte, s.chunkSize)
	for i := 1; i <= totalParts; i++ {
		data, ok := chunks[i]
		if !ok {
			if i == totalParts {
				break
			}
			data = zeros
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing draft %s: %w", draftPath, err)
		}
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing draft %s: %w", draftPath, err)
	}

	indexPath := s.IndexPath(fileName)
	idx := presenceIndex{
		FileName:   fileName,
		TotalParts: totalParts,
		Parts:      presentParts(totalParts, chunks),
	}
	blob, err := msgpack.Marshal(&idx)
	if err != nil {
		return nil, fmt.Errorf("encoding presence index: %w", err)
	}
	if err := os.WriteFile(indexPath, blob, 0o644); err != nil {
		return nil, fmt.Errorf("writing presence index %s: %w", indexPath, err)
	}

	manifestPath := s.ManifestPath()
	manifest := Manifest{FileName: fileName, TotalParts: totalParts, Missing: missing}
	doc, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, doc, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest %s: %w", manifestPath, err)
	}

	return &SaveResult{
		DraftPath:    draftPath,
		IndexPath:    indexPath,
		ManifestPath: manifestPath,
		Missing:      missing,
	}, nil
}

// Load reads a previously saved draft back into a part map. A missing draft
// yields an empty map, not an error. Load prefers the presence index and
// falls back to zero-stride scanning for drafts produced without one; in
// fallback mode a legitimately all-zero chunk reads as absent.
func (s *Store) Load(fileName string, totalParts int) (map[int][]byte, error) {
	draftPath := s.DraftPath(fileName)
	data, err := os.ReadFile(draftPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int][]byte{}, nil
		}
		return nil, fmt.Errorf("reading draft %s: %w", draftPath, err)
	}
	if int64(len(data)) > int64(totalParts)*int64(s.chunkSize) {
		return nil, fmt.Errorf("draft %s is %d bytes, larger than %d parts of %d",
			draftPath, len(data), totalParts, s.chunkSize)
	}

	if idx, err := s.readIndex(fileName, totalParts); err == nil && idx != nil {
		return s.loadWithIndex(data, idx)
	}

	return s.loadByScan(data, totalParts), nil
}

// readIndex returns the presence index, or nil when absent or stale.
func (s *Store) readIndex(fileName string, totalParts int) (*presenceIndex, error) {
	blob, err := os.ReadFile(s.IndexPath(fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var idx presenceIndex
	if err := msgpack.Unmarshal(blob, &idx); err != nil {
		s.logger.Warn("presence index unreadable, falling back to zero scan", map[string]any{
			"path":  s.IndexPath(fileName),
			"error": err.Error(),
		})
		return nil, nil
	}
	if idx.FileName != fileName || idx.TotalParts != totalParts {
		s.logger.Warn("presence index does not match session, falling back to zero scan", map[string]any{
			"index_file":  idx.FileName,
			"index_total": idx.TotalParts,
		})
		return nil, nil
	}
	return &idx, nil
}

func (s *Store) loadWithIndex(data []byte, idx *presenceIndex) (map[int][]byte, error) {
	chunks := make(map[int][]byte, len(idx.Parts))
	for _, part := range idx.Parts {
		if part < 1 || part > idx.TotalParts {
			return nil, fmt.Errorf("presence index lists part %d outside 1..%d", part, idx.TotalParts)
		}
		start := (part - 1) * s.chunkSize
		end := start + s.chunkSize
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			return nil, fmt.Errorf("presence index lists part %d beyond draft length %d", part, len(data))
		}
		chunks[part] = append([]byte(nil), data[start:end]...)
	}
	return chunks, nil
}

// loadByScan treats any chunk-aligned all-zero stride as absent. The final,
// possibly short, region is trusted only when it is present in full and not
// all zeros.
func (s *Store) loadByScan(data []byte, totalParts int) map[int][]byte {
	chunks := make(map[int][]byte)
	for i := 1; i < totalParts; i++ {
		start := (i - 1) * s.chunkSize
		end := start + s.chunkSize
		if end > len(data) {
			return chunks
		}
		stride := data[start:end]
		if !allZero(stride) {
			chunks[i] = append([]byte(nil), stride...)
		}
	}
	start := (totalParts - 1) * s.chunkSize
	if start < len(data) {
		tail := data[start:]
		if len(tail) <= s.chunkSize && !allZero(tail) {
			chunks[totalParts] = append([]byte(nil), tail...)
		}
	}
	return chunks
}

// WriteRestored writes the fully assembled file, concatenating parts
// 1..totalParts in order.
func (s *Store) WriteRestored(fileName string, totalParts int, chunks map[int][]byte) (string, error) {
	path := s.RestoredPath(fileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer iox.DiscardClose(f)
	for i := 1; i <= totalParts; i++ {
		data, ok := chunks[i]
		if !ok {
			return "", fmt.Errorf("part %d absent during final assembly", i)
		}
		if _, err := f.Write(data); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing %s: %w", path, err)
	}
	return path, nil
}

// Clear removes the draft, index, and manifest for fileName. Absent files
// are not errors.
func (s *Store) Clear(fileName string) error {
	for _, path := range []string{s.DraftPath(fileName), s.IndexPath(fileName), s.ManifestPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// ReadManifest loads a remediation manifest from an explicit path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	if m.TotalParts < 1 {
		return nil, fmt.Errorf("manifest %s has no total_parts", path)
	}
	return &m, nil
}

func presentParts(totalParts int, chunks map[int][]byte) []int {
	parts := make([]int, 0, len(chunks))
	for i := 1; i <= totalParts; i++ {
		if _, ok := chunks[i]; ok {
			parts = append(parts, i)
		}
	}
	return parts
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
