package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moss"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestRootRelative_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	t.Chdir(src)

	got, err := rootRelative(root, []string{"app.py", "../README.md", filepath.Join(root, "lib", "x.go")})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py", "README.md", "lib/x.go"}, got)

	_, err = rootRelative(root, []string{"../../outside.txt"})
	assert.Error(t, err)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestFilterHunks(t *testing.T) {
	t.Parallel()
	hunks := []moss.Hunk{
		{ID: 1, File: "src/a.go", OldLines: 1, NewLines: 1},
		{ID: 2, File: "src/deep/b.go", OldLines: 6, NewLines: 0},
		{ID: 3, File: "README.md", OldLines: 9, NewLines: 2},
	}

	tests := []struct {
		name       string
		glob       string
		suspicious bool
		want       []int
	}{
		{"no filter", "", false, []int{1, 2, 3}},
		{"glob", "src/**/*.go", false, []int{1, 2}},
		{"suspicious", "", true, []int{2, 3}},
		{"both", "**/*.go", true, []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := filterHunks(hunks, tt.glob, tt.suspicious, 3)
			require.NoError(t, err)
			var ids []int
			for _, h := range got {
				ids = append(ids, h.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := filterHunks(hunks, "[", false, 3)
	require.Error(t, err)
}

func TestReadContent(t *testing.T) {
	t.Parallel()

	got, err := readContent("", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(got))

	path := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))
	got, err = readContent(path, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "from file", string(got))

	_, err = readContent(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestFailed(t *testing.T) {
	t.Parallel()
	assert.True(t, failed(CLIValidation{Success: false}))
	assert.False(t, failed(CLIValidation{Success: true}))
	assert.True(t, failed(CLICheckReport{Passed: false}))
	assert.False(t, failed([]string{"a"}))
}

func TestOutputResultText(t *testing.T) {
	t.Parallel()
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		results any
		want    []string
	}{
		{"paths", []string{"a.go", "b.go"}, []string{"a.go\nb.go\n"}},
		{"raw string gets newline", "content", []string{"content\n"}},
		{"snapshots", []CLISnapshot{{ID: "0123456789abcdef", When: when, Message: "m"}},
			[]string{"ID", "01234567", "2026-01-02T03:04:05Z", "m"}},
		{"hunks", []CLIHunk{{ID: 1, File: "a.go", Symbol: "Server.Run", PureDeletion: true, Content: "@@ -1 +0,0 @@\n-x\n"}},
			[]string{"#1 a.go (Server.Run) [pure deletion]\n@@ -1 +0,0 @@\n-x\n"}},
		{"sandbox", CLISandbox{Path: "/r/.moss/shadow/worktree", Enabled: true, Modified: []string{"x"}},
			[]string{"(enabled)", "Modified: 1", "  x"}},
		{"checks", CLICheckReport{Passed: false, Results: []CLIValidation{{Name: "vet", Command: "go vet", ExitCode: 1, Stderr: "bad\n", Required: true}}},
			[]string{"FAIL (1)", "--- vet: go vet", "bad", "failed"}},
		{"diffs", []CLIFileDiff{{Patch: "p1\n"}, {Patch: "p2\n"}}, []string{"p1\np2\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, outputResultText(&buf, CLIResult{Results: tt.results}))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: 42})
	require.Error(t, err)
}
