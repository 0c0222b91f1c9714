package main

import (
	"time"

	"github.com/jward/moss"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISnapshot is a JSON-friendly snapshot representation.
type CLISnapshot struct {
	ID      string    `json:"id"`
	Parent  string    `json:"parent,omitempty"`
	Message string    `json:"message,omitempty"`
	When    time.Time `json:"when,omitzero"`
	Files   []string  `json:"files,omitempty"`
}

// CLIHunk is a JSON-friendly hunk representation.
type CLIHunk struct {
	ID            int     `json:"id"`
	File          string  `json:"file"`
	OldStart      int     `json:"old_start"`
	OldLines      int     `json:"old_lines"`
	NewStart      int     `json:"new_start"`
	NewLines      int     `json:"new_lines"`
	Header        string  `json:"header"`
	Content       string  `json:"content"`
	Symbol        string  `json:"symbol,omitempty"`
	PureDeletion  bool    `json:"pure_deletion"`
	DeletionRatio float64 `json:"deletion_ratio"`
}

// CLIJournalEntry is a JSON-friendly journal entry.
type CLIJournalEntry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Paths      []string  `json:"paths"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CLISandbox describes the sandbox after a command.
type CLISandbox struct {
	Path     string   `json:"path"`
	Enabled  bool     `json:"enabled"`
	Modified []string `json:"modified"`
}

// CLIValidation is a JSON-friendly validation result.
type CLIValidation struct {
	Name     string `json:"name,omitempty"`
	Command  string `json:"command"`
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Required bool   `json:"required,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// CLICheckReport is a JSON-friendly RunChecks report.
type CLICheckReport struct {
	Passed  bool            `json:"passed"`
	Results []CLIValidation `json:"results"`
}

// CLIFileDiff is one modified path's patch.
type CLIFileDiff struct {
	Path    string `json:"path"`
	Tracked bool   `json:"tracked"`
	Patch   string `json:"patch"`
}

// --- Conversions ---

func toCLISnapshot(info moss.SnapshotInfo) CLISnapshot {
	return CLISnapshot{
		ID:      info.ID.String(),
		Parent:  info.Parent.String(),
		Message: info.Message,
		When:    info.When,
	}
}

func toCLIHunks(hunks []moss.Hunk) []CLIHunk {
	out := make([]CLIHunk, 0, len(hunks))
	for _, h := range hunks {
		out = append(out, CLIHunk{
			ID:            h.ID,
			File:          h.File,
			OldStart:      h.OldStart,
			OldLines:      h.OldLines,
			NewStart:      h.NewStart,
			NewLines:      h.NewLines,
			Header:        h.Header,
			Content:       h.Content,
			Symbol:        h.Symbol,
			PureDeletion:  h.IsPureDeletion(),
			DeletionRatio: h.DeletionRatio(),
		})
	}
	return out
}

func toCLIJournal(entries []moss.JournalEntry) []CLIJournalEntry {
	out := make([]CLIJournalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, CLIJournalEntry{
			ID:         e.ID,
			Kind:       string(e.Kind),
			SnapshotID: e.SnapshotID,
			Paths:      e.Paths,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func toCLISandbox(sb *moss.Sandbox) CLISandbox {
	return CLISandbox{
		Path:     sb.Path(),
		Enabled:  sb.Enabled(),
		Modified: nonNil(sb.Modified()),
	}
}

func toCLIValidation(command string, res moss.ValidationResult) CLIValidation {
	return CLIValidation{
		Command:  command,
		Success:  res.Success,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

func toCLICheckReport(report moss.CheckReport) CLICheckReport {
	out := CLICheckReport{Passed: report.Passed, Results: []CLIValidation{}}
	for _, r := range report.Results {
		v := toCLIValidation(r.Command, r.ValidationResult)
		v.Name = r.Name
		v.Required = r.Required
		v.Duration = r.Duration.Round(time.Millisecond).String()
		out.Results = append(out.Results, v)
	}
	return out
}

func toCLIFileDiffs(diffs []moss.FileDiff) []CLIFileDiff {
	out := make([]CLIFileDiff, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, CLIFileDiff{Path: d.Path, Tracked: d.Tracked, Patch: d.Patch})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
