package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/moss"
	"github.com/jward/moss/internal/config"
	"github.com/jward/moss/internal/fsutil"
)

var (
	flagRoot    string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "moss",
	Short:         "Snapshots, hunk review and an edit sandbox for automated code edits",
	Long:          "Moss records on-demand snapshots of project files, reports hunks changed since any snapshot, restores files selectively, and stages edits in an isolated git worktree until they validate.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: enclosing git repository, or the current directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(hunksCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(headCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(sandboxCmd)
	rootCmd.AddCommand(runCmd)
}

// openWorkspace opens the workspace for --root, or for the repository
// enclosing the working directory.
func openWorkspace(opts ...moss.Option) (*moss.Workspace, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(newLogger(slog.LevelWarn)).Load(root)
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		level = slog.LevelDebug
	}

	opts = append([]moss.Option{moss.WithConfig(cfg), moss.WithLogger(newLogger(level))}, opts...)
	return moss.Open(root, opts...)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolveRoot() (string, error) {
	if flagRoot != "" {
		abs, err := filepath.Abs(flagRoot)
		if err != nil {
			return "", fmt.Errorf("resolving root %q: %w", flagRoot, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", abs)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// rootRelative resolves file arguments against the working directory and
// returns them relative to root.
func rootRelative(root string, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", arg, err)
		}
		rel, err := fsutil.RelTo(root, abs)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
