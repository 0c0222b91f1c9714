package main

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/jward/moss"
)

var (
	flagMessage    string
	flagSince      string
	flagPath       string
	flagSuspicious bool
	flagMinRatio   float64
	flagLimit      int
	flagKind       string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <file>...",
	Short: "Record the current content of files",
	Long:  "Records the named files on top of the latest snapshot. File arguments are relative to the current directory. Missing files are recorded as removed.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSnapshot,
}

var hunksCmd = &cobra.Command{
	Use:   "hunks",
	Short: "List hunks changed since a snapshot",
	Long:  "Diffs the files on disk against the latest snapshot, or against --since.",
	Args:  cobra.NoArgs,
	RunE:  runHunks,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot> [file]...",
	Short: "Write files back from a snapshot",
	Long:  "Writes the named files (relative to the current directory), or every file the snapshot records, back to disk. Files are never deleted.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRestore,
}

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the latest snapshot",
	Args:  cobra.NoArgs,
	RunE:  runHead,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List journaled operations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournal,
}

func init() {
	snapshotCmd.Flags().StringVarP(&flagMessage, "message", "m", "", "snapshot message")

	hunksCmd.Flags().StringVar(&flagSince, "since", "", "snapshot id to diff against (default: latest)")
	hunksCmd.Flags().StringVar(&flagPath, "path", "", "only hunks whose file matches this glob (doublestar syntax)")
	hunksCmd.Flags().BoolVar(&flagSuspicious, "suspicious", false, "only pure deletions and hunks at or above --min-ratio")
	hunksCmd.Flags().Float64Var(&flagMinRatio, "min-ratio", 3, "deletion ratio treated as suspicious")

	journalCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum entries (0 for all)")
	journalCmd.Flags().StringVar(&flagKind, "kind", "", "only entries of this kind: snapshot|restore|apply|reset|sync")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return outputError("snapshot", err)
	}
	defer w.Close()

	files, err := rootRelative(w.Root(), args)
	if err != nil {
		return outputError("snapshot", err)
	}
	var opts []moss.SnapshotOption
	if flagMessage != "" {
		opts = append(opts, moss.WithMessage(flagMessage))
	}
	id, err := w.Snapshot(files, opts...)
	if err != nil {
		return outputError("snapshot", err)
	}
	snap, err := w.Store().Get(id)
	if err != nil {
		return outputError("snapshot", err)
	}
	out := toCLISnapshot(snap.Info)
	out.Files = snap.Files
	return outputResult(CLIResult{Command: "snapshot", Results: out})
}

func runHunks(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return outputError("hunks", err)
	}
	defer w.Close()

	var hunks []moss.Hunk
	if flagSince != "" {
		id, err := moss.ParseID(flagSince)
		if err != nil {
			return outputError("hunks", err)
		}
		hunks, err = w.HunksSince(id)
		if err != nil {
			return outputError("hunks", err)
		}
	} else {
		hunks, err = w.Hunks()
		if err != nil {
			return outputError("hunks", err)
		}
	}

	hunks, err = filterHunks(hunks, flagPath, flagSuspicious, flagMinRatio)
	if err != nil {
		return outputError("hunks", err)
	}
	results := toCLIHunks(hunks)
	total := len(results)
	return outputResult(CLIResult{Command: "hunks", Results: results, TotalCount: &total})
}

// filterHunks keeps hunks whose file matches glob (when set) and, when
// suspicious is set, that are pure deletions or reach minRatio.
func filterHunks(hunks []moss.Hunk, glob string, suspicious bool, minRatio float64) ([]moss.Hunk, error) {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid --path glob %q", glob)
	}
	var out []moss.Hunk
	for _, h := range hunks {
		if glob != "" {
			if ok, _ := doublestar.Match(glob, h.File); !ok {
				continue
			}
		}
		if suspicious && !h.IsPureDeletion() && h.DeletionRatio() < minRatio {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	id, err := moss.ParseID(args[0])
	if err != nil {
		return outputError("restore", err)
	}
	w, err := openWorkspace()
	if err != nil {
		return outputError("restore", err)
	}
	defer w.Close()

	var files []string
	if len(args) > 1 {
		if files, err = rootRelative(w.Root(), args[1:]); err != nil {
			return outputError("restore", err)
		}
	}
	written, err := w.Restore(id, files)
	if err != nil {
		return outputPartial("restore", nonNil(written), err)
	}
	return outputResult(CLIResult{Command: "restore", Results: nonNil(written)})
}

func runHead(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return outputError("head", err)
	}
	defer w.Close()

	id, err := w.Store().Head()
	if err != nil {
		return outputError("head", err)
	}
	snap, err := w.Store().Get(id)
	if err != nil {
		return outputError("head", err)
	}
	out := toCLISnapshot(snap.Info)
	out.Files = snap.Files
	return outputResult(CLIResult{Command: "head", Results: out})
}

func runLog(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return outputError("log", err)
	}
	defer w.Close()

	infos, err := w.Store().List()
	if err != nil {
		return outputError("log", err)
	}
	results := make([]CLISnapshot, 0, len(infos))
	for _, info := range infos {
		results = append(results, toCLISnapshot(info))
	}
	total := len(results)
	return outputResult(CLIResult{Command: "log", Results: results, TotalCount: &total})
}

func runJournal(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return outputError("journal", err)
	}
	defer w.Close()

	entries, err := w.Journal(flagKind, flagLimit)
	if errors.Is(err, moss.ErrJournalDisabled) {
		return outputError("journal", fmt.Errorf("journal is disabled (journal.enabled: false)"))
	}
	if err != nil {
		return outputError("journal", err)
	}
	return outputResult(CLIResult{Command: "journal", Results: toCLIJournal(entries)})
}
