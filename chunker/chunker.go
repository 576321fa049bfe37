// Package chunker reads a source file as a finite sequence of fixed-size
// chunks, numbered 1..N. The sequence is lazy, forward-only, and
// non-restartable; a remediation pass restricts iteration to an explicit
// part set instead of re-reading everything.
package chunker

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Source iterates over the chunks of one file, bufio.Scanner style:
//
//	src, err := chunker.Open(path, chunkSize)
//	...
//	for src.Next() {
//	    part, data := src.Part(), src.Data()
//	}
//	if err := src.Err(); err != nil { ... }
type Source struct {
	f         io.ReadCloser
	path      string
	chunkSize int
	size      int64

	part int
	data []byte
	err  error
	done bool
}

// Open opens a chunk source over the file at path.
// Returns ErrSourceUnavailable (wrapped) if the file cannot be opened.
func Open(path string, chunkSize int) (*Source, error) {
	if chunkSize < 1 {
		return nil, &SourceError{Op: "open", Path: path, Err: errInvalidChunkSize}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Op: "open", Path: path, Kind: ErrSourceUnavailable, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &SourceError{Op: "stat", Path: path, Kind: ErrSourceUnavailable, Err: err}
	}
	return &Source{
		f:         f,
		path:      path,
		chunkSize: chunkSize,
		size:      info.Size(),
	}, nil
}

// Next advances to the next chunk. It returns false at end of file or on a
// read fault, after which Err distinguishes the two.
func (s *Source) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.f, buf)
	switch {
	case err == nil:
		s.part++
		s.data = buf
		return true
	case errors.Is(err, io.EOF):
		s.done = true
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Short final chunk.
		s.part++
		s.data = buf[:n]
		s.done = true
		return true
	default:
		// A partial read before the fault is not a chunk; Part and Data
		// keep reporting the last delivered one.
		s.done = true
		s.err = &SourceError{Op: "read", Path: s.path, Kind: ErrSourceRead, Err: err}
		return false
	}
}

// Part returns the 1-based number of the current chunk.
func (s *Source) Part() int { return s.part }

// Data returns the current chunk's bytes. Valid until the next call to Next.
func (s *Source) Data() []byte { return s.data }

// Err returns the read fault that terminated iteration early, if any.
func (s *Source) Err() error { return s.err }

// Name returns the base name of the source file, as carried in envelopes.
func (s *Source) Name() string { return filepath.Base(s.path) }

// Size returns the file size in bytes at open time.
func (s *Source) Size() int64 { return s.size }

// TotalParts returns the part count for this source at the configured
// chunk size.
func (s *Source) TotalParts() int { return TotalParts(s.size, s.chunkSize) }

// Close releases the underlying file.
func (s *Source) Close() error { return s.f.Close() }

// TotalParts returns ceil(fileSize / chunkSize).
func TotalParts(fileSize int64, chunkSize int) int {
	if fileSize <= 0 {
		return 0
	}
	return int((fileSize + int64(chunkSize) - 1) / int64(chunkSize))
}

// PartSet is an explicit set of part numbers used to restrict a remediation
// pass. A nil PartSet selects every part.
type PartSet map[int]struct{}

// NewPartSet builds a PartSet from a list of part numbers.
func NewPartSet(parts []int) PartSet {
	set := make(PartSet, len(parts))
	for _, p := range parts {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether part is selected. A nil set selects everything.
func (s PartSet) Has(part int) bool {
	if s == nil {
		return true
	}
	_, ok := s[part]
	return ok
}

// Len returns the number of selected parts; 0 for the select-all nil set.
func (s PartSet) Len() int { return len(s) }

// Sorted returns the selected part numbers in ascending order.
func (s PartSet) Sorted() []int {
	parts := make([]int, 0, len(s))
	for p := range s {
		parts = append(parts, p)
	}
	sort.Ints(parts)
	return parts
}

// Missing returns the ascending part numbers in 1..total absent from have.
func Missing(total int, have map[int][]byte) []int {
	missing := make([]int, 0)
	for i := 1; i <= total; i++ {
		if _, ok := have[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
