package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/moss"
	"github.com/jward/moss/scripts"
)

var (
	flagScriptsDir string
	flagBuiltin    bool
)

var runCmd = &cobra.Command{
	Use:   "run <script.risor>",
	Short: "Run a Risor script with the shadow and sandbox handles bound",
	Long:  "Runs a Risor script from disk, or with --builtin one of the scripts shipped with moss (e.g. 'moss run --builtin guard').",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	runCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory imports resolve against (default: the script's directory)")
	runCmd.Flags().BoolVar(&flagBuiltin, "builtin", false, "run an embedded script by name")
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if flagBuiltin {
		name := strings.TrimSuffix(args[0], ".risor") + ".risor"
		w, err := openWorkspace(moss.WithScriptsFS(scripts.FS))
		if err != nil {
			return outputError("run", err)
		}
		defer w.Close()
		if err := w.RunScript(ctx, name, nil); err != nil {
			return outputError("run", err)
		}
		return outputResult(CLIResult{Command: "run", Results: name})
	}

	script, err := filepath.Abs(args[0])
	if err != nil {
		return outputError("run", err)
	}
	dir := flagScriptsDir
	if dir == "" {
		dir = filepath.Dir(script)
	}

	w, err := openWorkspace(moss.WithScriptsDir(dir))
	if err != nil {
		return outputError("run", err)
	}
	defer w.Close()

	if err := w.RunScript(ctx, script, nil); err != nil {
		return outputError("run", err)
	}
	return outputResult(CLIResult{Command: "run", Results: script})
}
