// Package view defines the payloads shared by every CLI output mode. TUI
// and non-TUI rendering consume the same structures; no mode gets extra
// data.
package view

import (
	"fmt"
	"strings"
)

// SessionView describes a persisted partial transfer session.
type SessionView struct {
	FileName     string `json:"filename" yaml:"filename"`
	TotalParts   int    `json:"total_parts" yaml:"total_parts"`
	Received     int    `json:"received" yaml:"received"`
	Missing      []int  `json:"missing" yaml:"missing"`
	DraftBytes   int64  `json:"draft_bytes" yaml:"draft_bytes"`
	HasIndex     bool   `json:"has_index" yaml:"has_index"`
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`
}

// Percent returns reassembly progress in 0..1.
func (v *SessionView) Percent() float64 {
	if v.TotalParts <= 0 {
		return 0
	}
	return float64(v.Received) / float64(v.TotalParts)
}

// TableRows implements tabular rendering.
func (v *SessionView) TableRows() [][2]string {
	return [][2]string{
		{"filename", v.FileName},
		{"total_parts", fmt.Sprintf("%d", v.TotalParts)},
		{"received", fmt.Sprintf("%d", v.Received)},
		{"missing", formatParts(v.Missing)},
		{"draft_bytes", fmt.Sprintf("%d", v.DraftBytes)},
		{"has_index", fmt.Sprintf("%t", v.HasIndex)},
		{"manifest_path", v.ManifestPath},
	}
}

// VersionResponse is the version command payload.
type VersionResponse struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
}

// TableRows implements tabular rendering.
func (v *VersionResponse) TableRows() [][2]string {
	return [][2]string{
		{"version", v.Version},
		{"commit", v.Commit},
	}
}

// SummaryView reports how a receive session ended, for human and machine
// consumption alike.
type SummaryView struct {
	Outcome      string `json:"outcome" yaml:"outcome"`
	FileName     string `json:"filename,omitempty" yaml:"filename,omitempty"`
	TotalParts   int    `json:"total_parts,omitempty" yaml:"total_parts,omitempty"`
	Received     int    `json:"received,omitempty" yaml:"received,omitempty"`
	Missing      []int  `json:"missing,omitempty" yaml:"missing,omitempty"`
	RestoredPath string `json:"restored_path,omitempty" yaml:"restored_path,omitempty"`
	ManifestPath string `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	ArchivedTo   string `json:"archived_to,omitempty" yaml:"archived_to,omitempty"`
}

// TableRows implements tabular rendering.
func (v *SummaryView) TableRows() [][2]string {
	rows := [][2]string{
		{"outcome", v.Outcome},
	}
	if v.FileName != "" {
		rows = append(rows,
			[2]string{"filename", v.FileName},
			[2]string{"total_parts", fmt.Sprintf("%d", v.TotalParts)},
			[2]string{"received", fmt.Sprintf("%d", v.Received)},
		)
	}
	if len(v.Missing) > 0 {
		rows = append(rows, [2]string{"missing", formatParts(v.Missing)})
	}
	if v.RestoredPath != "" {
		rows = append(rows, [2]string{"restored_path", v.RestoredPath})
	}
	if v.ManifestPath != "" {
		rows = append(rows, [2]string{"manifest_path", v.ManifestPath})
	}
	if v.ArchivedTo != "" {
		rows = append(rows, [2]string{"archived_to", v.ArchivedTo})
	}
	return rows
}

// formatParts renders a part list compactly, collapsing long runs.
func formatParts(parts []int) string {
	if len(parts) == 0 {
		return "none"
	}
	if len(parts) <= 12 {
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = fmt.Sprintf("%d", p)
		}
		return strings.Join(strs, ", ")
	}
	return fmt.Sprintf("%d..%d (%d parts)", parts[0], parts[len(parts)-1], len(parts))
}
