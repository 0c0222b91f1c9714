package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	return outputPartial(command, nil, err)
}

// outputPartial is outputError for operations that did part of their work
// before failing. results, when non-nil, reports what was done and travels
// in the same envelope as the error.
func outputPartial(command string, results any, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		if results != nil {
			_ = outputResultText(os.Stdout, CLIResult{Command: command, Results: results})
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Results: results,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case string:
		fmt.Fprint(w, v)
		if v != "" && !strings.HasSuffix(v, "\n") {
			fmt.Fprintln(w)
		}
	case []string:
		for _, p := range v {
			fmt.Fprintln(w, p)
		}
	case CLISnapshot:
		formatSnapshotText(w, v)
	case []CLISnapshot:
		formatSnapshotsText(w, v)
	case []CLIHunk:
		formatHunksText(w, v)
	case []CLIJournalEntry:
		formatJournalText(w, v)
	case CLISandbox:
		formatSandboxText(w, v)
	case CLIValidation:
		formatValidationText(w, v)
	case CLICheckReport:
		formatCheckReportText(w, v)
	case []CLIFileDiff:
		for _, d := range v {
			fmt.Fprint(w, d.Patch)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatSnapshotText(w io.Writer, s CLISnapshot) {
	fmt.Fprintf(w, "snapshot %s\n", s.ID)
	if s.Parent != "" {
		fmt.Fprintf(w, "Parent:  %s\n", s.Parent)
	}
	if !s.When.IsZero() {
		fmt.Fprintf(w, "Date:    %s\n", s.When.Format(time.RFC3339))
	}
	if s.Message != "" {
		fmt.Fprintf(w, "\n    %s\n", s.Message)
	}
	if len(s.Files) > 0 {
		fmt.Fprintln(w)
		for _, f := range s.Files {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
}

// formatSnapshotsText formats snapshot history as aligned columns.
func formatSnapshotsText(w io.Writer, snaps []CLISnapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMESSAGE")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", shortID(s.ID), s.When.Format(time.RFC3339), s.Message)
	}
	tw.Flush()
}

// formatHunksText prints each hunk as a patch fragment preceded by a summary
// line.
func formatHunksText(w io.Writer, hunks []CLIHunk) {
	for _, h := range hunks {
		label := fmt.Sprintf("#%d %s", h.ID, h.File)
		if h.Symbol != "" {
			label += " (" + h.Symbol + ")"
		}
		if h.PureDeletion {
			label += " [pure deletion]"
		} else if h.DeletionRatio > 1 {
			label += fmt.Sprintf(" [ratio %.1f]", h.DeletionRatio)
		}
		fmt.Fprintln(w, label)
		fmt.Fprint(w, h.Content)
	}
}

// formatJournalText formats journal entries as aligned columns.
func formatJournalText(w io.Writer, entries []CLIJournalEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tSNAPSHOT\tPATHS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Kind, shortID(e.SnapshotID), strings.Join(e.Paths, ","))
	}
	tw.Flush()
}

func formatSandboxText(w io.Writer, sb CLISandbox) {
	state := "disabled"
	if sb.Enabled {
		state = "enabled"
	}
	fmt.Fprintf(w, "Sandbox: %s (%s)\n", sb.Path, state)
	fmt.Fprintf(w, "Modified: %d\n", len(sb.Modified))
	for _, p := range sb.Modified {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

func formatValidationText(w io.Writer, v CLIValidation) {
	fmt.Fprint(w, v.Stdout)
	if v.Stderr != "" {
		fmt.Fprint(os.Stderr, v.Stderr)
	}
	if !v.Success {
		fmt.Fprintf(w, "exit code %d\n", v.ExitCode)
	}
}

// formatCheckReportText formats check results as aligned columns followed by
// the output of failed checks.
func formatCheckReportText(w io.Writer, r CLICheckReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tREQUIRED\tDURATION")
	for _, c := range r.Results {
		result := "ok"
		if !c.Success {
			result = fmt.Sprintf("FAIL (%d)", c.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Name, result, c.Required, c.Duration)
	}
	tw.Flush()

	for _, c := range r.Results {
		if c.Success {
			continue
		}
		fmt.Fprintf(w, "\n--- %s: %s\n%s%s", c.Name, c.Command, c.Stdout, c.Stderr)
	}
	if r.Passed {
		fmt.Fprintln(w, "\npassed")
	} else {
		fmt.Fprintln(w, "\nfailed")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
