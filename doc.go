// Package moss gives automated code-editing tools a safety net over a project
// tree: on-demand snapshots of chosen files, hunk-level diffs against any
// snapshot, selective restore, and an isolated edit sandbox where changes
// are validated before they reach the real files.
//
// # Snapshots
//
// Snapshots live in a private repository under <root>/.moss, never in the
// project's own history. Each [Workspace.Snapshot] records the current
// content of the named files on top of the previous snapshot; paths not
// named keep their recorded state. A path that is missing on disk is
// recorded as removed.
//
//	w, err := moss.Open(".")
//	if err != nil { ... }
//	defer w.Close()
//
//	s1, err := w.Snapshot([]string{"app.py"})
//	// ... edit app.py ...
//	hunks, err := w.HunksSince(s1)
//	for _, h := range hunks {
//		if h.IsPureDeletion() || h.DeletionRatio() > 3 {
//			w.Restore(s1, []string{h.File})
//		}
//	}
//
// Hunks carry the qualified name of the enclosing declaration when
// shadow.annotate_symbols is on (the default).
//
// # Sandbox
//
// [Workspace.Sandbox] opens a detached git worktree at
// <root>/.moss/shadow/worktree. Edits made through [Sandbox.Edit] are
// tracked; [Sandbox.Validate] runs any shell command there; [Sandbox.Apply]
// copies only the tracked edits back, so build artifacts never leak into the
// project. While the sandbox is enabled, [Workspace.WriteFile] routes writes
// into it.
//
// # Journal
//
// Snapshot, restore, apply, reset and sync operations are recorded in a
// SQLite journal at <root>/.moss/journal.db. See [Workspace.Journal].
//
// # Scripts
//
// [Workspace.RunScript] runs Risor scripts with "shadow" and "sandbox"
// handles bound as globals.
package moss
