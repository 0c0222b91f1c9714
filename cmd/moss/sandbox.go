package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/moss"
)

var flagFrom string

// errChecksFailed makes the process exit 1 after a failing validation has
// already been reported.
var errChecksFailed = errors.New("validation failed")

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Stage edits in an isolated worktree",
	Long:  "The sandbox is a detached git worktree at .moss/shadow/worktree. Only paths written with 'sandbox edit' are diffed or applied.",
}

var sandboxOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Create or reuse the sandbox",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox open", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		return toCLISandbox(sb), nil
	}),
}

var sandboxSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Move the sandbox to the project's HEAD, discarding edits",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox sync", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		if err := w.SyncSandbox(ctx); err != nil {
			return nil, err
		}
		return toCLISandbox(sb), nil
	}),
}

var sandboxResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard every sandbox edit",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox reset", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		if err := w.ResetSandbox(ctx); err != nil {
			return nil, err
		}
		return toCLISandbox(sb), nil
	}),
}

var sandboxEditCmd = &cobra.Command{
	Use:   "edit <path>",
	Short: "Write a file in the sandbox (content from --from or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: withSandbox("sandbox edit", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		content, err := readContent(flagFrom, os.Stdin)
		if err != nil {
			return nil, err
		}
		rel, err := rootRelative(w.Root(), args)
		if err != nil {
			return nil, err
		}
		if err := sb.Edit(rel[0], content); err != nil {
			return nil, err
		}
		return toCLISandbox(sb), nil
	}),
}

var sandboxReadCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Print a file as the sandbox sees it",
	Args:  cobra.ExactArgs(1),
	RunE: withSandbox("sandbox read", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		rel, err := rootRelative(w.Root(), args)
		if err != nil {
			return nil, err
		}
		data, err := sb.Read(rel[0])
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}),
}

var sandboxValidateCmd = &cobra.Command{
	Use:   "validate <command>...",
	Short: "Run a shell command inside the sandbox",
	Long:  "Runs the arguments, joined by spaces, through the configured shell with the sandbox as working directory. Exits 1 when the command fails.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withSandbox("sandbox validate", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		command := strings.Join(args, " ")
		return toCLIValidation(command, sb.Validate(ctx, command)), nil
	}),
}

var sandboxCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the configured checks triggered by the current edits",
	Long:  "Runs sandbox.checks from the configuration. Exits 1 when a required check fails.",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox check", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		report, err := w.RunChecks(ctx)
		if err != nil {
			return nil, err
		}
		return toCLICheckReport(report), nil
	}),
}

var sandboxDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show patches for the sandbox edits",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox diff", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		diffs, err := sb.Diff(ctx)
		if err != nil {
			return nil, err
		}
		return toCLIFileDiffs(diffs), nil
	}),
}

var sandboxApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Copy the sandbox edits into the project",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox apply", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		applied, err := w.ApplySandbox(ctx)
		return nonNil(applied), err
	}),
}

var sandboxModifiedCmd = &cobra.Command{
	Use:   "modified",
	Short: "List the paths edited in the sandbox",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox modified", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		return nonNil(sb.Modified()), nil
	}),
}

var sandboxEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Route workspace writes into the sandbox",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox enable", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		if err := sb.Enable(); err != nil {
			return nil, err
		}
		return toCLISandbox(sb), nil
	}),
}

var sandboxDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop routing workspace writes into the sandbox",
	Args:  cobra.NoArgs,
	RunE: withSandbox("sandbox disable", func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error) {
		if err := sb.Disable(); err != nil {
			return nil, err
		}
		return toCLISandbox(sb), nil
	}),
}

func init() {
	sandboxEditCmd.Flags().StringVar(&flagFrom, "from", "", "read content from this file instead of stdin")

	sandboxCmd.AddCommand(sandboxOpenCmd)
	sandboxCmd.AddCommand(sandboxSyncCmd)
	sandboxCmd.AddCommand(sandboxResetCmd)
	sandboxCmd.AddCommand(sandboxEditCmd)
	sandboxCmd.AddCommand(sandboxReadCmd)
	sandboxCmd.AddCommand(sandboxValidateCmd)
	sandboxCmd.AddCommand(sandboxCheckCmd)
	sandboxCmd.AddCommand(sandboxDiffCmd)
	sandboxCmd.AddCommand(sandboxApplyCmd)
	sandboxCmd.AddCommand(sandboxModifiedCmd)
	sandboxCmd.AddCommand(sandboxEnableCmd)
	sandboxCmd.AddCommand(sandboxDisableCmd)
}

type sandboxFunc func(ctx context.Context, w *moss.Workspace, sb *moss.Sandbox, args []string) (any, error)

// withSandbox opens the workspace and its sandbox, runs fn and prints its
// result under command.
func withSandbox(command string, fn sandboxFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		w, err := openWorkspace()
		if err != nil {
			return outputError(command, err)
		}
		defer w.Close()

		sb, err := w.Sandbox(ctx)
		if err != nil {
			return outputError(command, err)
		}
		result, err := fn(ctx, w, sb, args)
		if err != nil {
			return outputPartial(command, result, err)
		}
		if err := outputResult(CLIResult{Command: command, Results: result}); err != nil {
			return err
		}
		if failed(result) {
			errorHandled = true
			return errChecksFailed
		}
		return nil
	}
}

// failed reports whether result is a failed validation or check run.
func failed(result any) bool {
	switch r := result.(type) {
	case CLIValidation:
		return !r.Success
	case CLICheckReport:
		return !r.Passed
	}
	return false
}

// readContent returns the file at from, or all of stdin when from is empty.
func readContent(from string, stdin io.Reader) ([]byte, error) {
	if from == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return nil, fmt.Errorf("reading --from: %w", err)
	}
	return data, nil
}
