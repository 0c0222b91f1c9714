package moss

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moss/internal/sandbox"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	git := func(args ...string) {
		base := []string{"-c", "user.name=moss-test", "-c", "user.email=moss@example.com", "-c", "commit.gpgsign=false"}
		cmd := exec.Command("git", append(base, args...)...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	git("init", "-q")
	writeFile(t, root, "app.py", "print(1)\n")
	git("add", ".")
	git("commit", "-q", "-m", "init")
	return root
}

func newTestWorkspace(t *testing.T, root string, opts ...Option) *Workspace {
	t.Helper()
	opts = append([]Option{WithConfig(DefaultConfig())}, opts...)
	w, err := Open(root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestOpen_CreatesStateDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w := newTestWorkspace(t, root)

	assert.Equal(t, "*\n", readFile(t, root, ".moss/.gitignore"))
	assert.FileExists(t, filepath.Join(root, ".moss", "journal.db"))

	head, err := w.Store().Head()
	require.NoError(t, err)
	assert.NotEmpty(t, head)
}

func TestOpen_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Log.Level = "shout"

	_, err := Open(t.TempDir(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestOpen_ReadsProjectConfig(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, ".moss/config.yaml", "shadow:\n  context_lines: 0\njournal:\n  enabled: false\n")

	w, err := Open(root)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 0, w.Config().ContextLinesOrDefault())
	_, err = w.Journal("", 0)
	assert.ErrorIs(t, err, ErrJournalDisabled)
	assert.NoFileExists(t, filepath.Join(root, ".moss", "journal.db"))
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := newTestRepo(t)
	w := newTestWorkspace(t, root)

	s1, err := w.Snapshot([]string{"app.py"})
	require.NoError(t, err)

	writeFile(t, root, "app.py", "print(2)\n")
	s2, err := w.Snapshot([]string{"app.py"})
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	hunks, err := w.HunksSince(s1)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, "app.py", hunks[0].File)
	assert.Equal(t, 1, hunks[0].OldLines)
	assert.Equal(t, 1, hunks[0].NewLines)

	restored, err := w.Restore(s1, []string{"app.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, restored)
	assert.Equal(t, "print(1)\n", readFile(t, root, "app.py"))

	sb, err := w.Sandbox(ctx)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, ".moss", "shadow", "worktree"))
	require.NoError(t, sb.Edit("app.py", []byte("print(3)\n")))
	assert.Equal(t, "print(1)\n", readFile(t, root, "app.py"))

	applied, err := w.ApplySandbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, applied)
	assert.Equal(t, "print(3)\n", readFile(t, root, "app.py"))

	entries, err := w.Journal("", 0)
	require.NoError(t, err)
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, string(e.Kind))
	}
	assert.Equal(t, []string{"apply", "restore", "snapshot", "snapshot"}, kinds)
	assert.Equal(t, s1.String(), entries[1].SnapshotID)
}

func TestWriteFile_SnapshotsBeforeWriting(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	w := newTestWorkspace(t, root)

	require.NoError(t, w.WriteFile(context.Background(), filepath.Join(root, "main.go"), []byte("package broken\n")))
	assert.Equal(t, "package broken\n", readFile(t, root, "main.go"))

	history, err := w.Store().List()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "before write: main.go", history[0].Message)

	_, err = w.Restore(history[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", readFile(t, root, "main.go"))
}

func TestWriteFile_NewFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w := newTestWorkspace(t, root)

	require.NoError(t, w.WriteFile(context.Background(), "pkg/new.txt", []byte("hello\n")))
	assert.Equal(t, "hello\n", readFile(t, root, "pkg/new.txt"))

	history, err := w.Store().List()
	require.NoError(t, err)
	require.Len(t, history, 2)
	snap, err := w.Store().Get(history[0].ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Files, "the path did not exist before the write")

	hunks, err := w.Hunks()
	require.NoError(t, err)
	assert.Empty(t, hunks, "paths no snapshot records are not diffed")
}

func TestWriteFile_RejectsOutsideRoot(t *testing.T) {
	t.Parallel()
	w := newTestWorkspace(t, t.TempDir())

	err := w.WriteFile(context.Background(), "../escape.txt", []byte("x"))
	require.Error(t, err)
}

func TestWriteFile_RoutedToEnabledSandbox(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := newTestRepo(t)
	w := newTestWorkspace(t, root)

	sb, err := w.Sandbox(ctx)
	require.NoError(t, err)
	require.NoError(t, sb.Enable())

	require.NoError(t, w.WriteFile(ctx, "app.py", []byte("print(9)\n")))
	assert.Equal(t, "print(1)\n", readFile(t, root, "app.py"))
	assert.Equal(t, []string{"app.py"}, sb.Modified())

	history, err := w.Store().List()
	require.NoError(t, err)
	assert.Len(t, history, 1, "sandboxed writes take no snapshot")
}

func TestResetAndSyncSandbox_Journaled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := newTestRepo(t)
	w := newTestWorkspace(t, root)

	sb, err := w.Sandbox(ctx)
	require.NoError(t, err)
	require.NoError(t, sb.Edit("a.txt", []byte("a")))
	require.NoError(t, w.ResetSandbox(ctx))
	assert.Empty(t, sb.Modified())
	require.NoError(t, w.SyncSandbox(ctx))

	resets, err := w.Journal("reset", 0)
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.Equal(t, []string{"a.txt"}, resets[0].Paths)

	syncs, err := w.Journal("SYNC", 0)
	require.NoError(t, err)
	require.Len(t, syncs, 1)
	assert.Empty(t, syncs[0].Paths)
}

func TestRunChecks_UsesConfiguredChecks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := newTestRepo(t)
	cfg := DefaultConfig()
	cfg.Sandbox.Checks = []sandbox.Check{
		{Name: "has-print", Command: "grep -q print app.py", Triggers: []string{"*.py"}, Required: true},
	}
	w := newTestWorkspace(t, root, WithConfig(cfg))

	sb, err := w.Sandbox(ctx)
	require.NoError(t, err)
	require.NoError(t, sb.Edit("app.py", []byte("exit()\n")))

	report, err := w.RunChecks(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Passed)
}

func TestRunSource_BindsHandles(t *testing.T) {
	t.Parallel()
	root := newTestRepo(t)
	w := newTestWorkspace(t, root)

	script := `
id := shadow.snapshot(["app.py"], "from script")
sandbox.edit("app.py", "print(5)\n")
assert(sandbox.read("app.py") == "print(5)\n", "sandbox bound")
assert(shadow.head() == id, "shadow bound")
`
	require.NoError(t, w.RunSource(context.Background(), script, nil))

	history, err := w.Store().List()
	require.NoError(t, err)
	assert.Equal(t, "from script", history[0].Message)
}

func TestRunSource_JournalsHandleOperations(t *testing.T) {
	t.Parallel()
	root := newTestRepo(t)
	w := newTestWorkspace(t, root)

	script := `
id := shadow.snapshot(["app.py"])
sandbox.edit("app.py", "print(6)\n")
res := sandbox.apply()
assert(res["paths"][0] == "app.py", "applied")
shadow.restore(id, ["app.py"])
sandbox.reset()
`
	require.NoError(t, w.RunSource(context.Background(), script, nil))

	entries, err := w.Journal("", 0)
	require.NoError(t, err)
	kinds := make([]string, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, string(e.Kind))
	}
	assert.Equal(t, []string{"reset", "restore", "apply", "snapshot"}, kinds)
	assert.Equal(t, []string{"app.py"}, entries[0].Paths, "reset records the discarded edits")
}

func TestRunSource_NoSandboxOutsideGit(t *testing.T) {
	t.Parallel()
	w := newTestWorkspace(t, t.TempDir())

	require.NoError(t, w.RunSource(context.Background(), `shadow.head()`, nil))
	err := w.RunSource(context.Background(), `sandbox.modified()`, nil)
	require.Error(t, err)
}

func TestParseID(t *testing.T) {
	t.Parallel()
	w := newTestWorkspace(t, t.TempDir())
	head, err := w.Store().Head()
	require.NoError(t, err)

	got, err := ParseID(" " + head.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, head, got)
}
