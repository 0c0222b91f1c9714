package shadow

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(root, opts...)
	require.NoError(t, err)
	return s, root
}

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

func TestOpen_CreatesRootSnapshot(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)

	head, err := s.Head()
	require.NoError(t, err)
	assert.Len(t, string(head), 40)

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, head, infos[0].ID)
	assert.Equal(t, rootMessage, infos[0].Message)
	assert.Empty(t, infos[0].Parent)

	assert.DirExists(t, filepath.Join(root, DirName, ".git"))
}

func TestOpen_Idempotent(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "one\n")
	id, err := s.Snapshot([]string{"a.txt"})
	require.NoError(t, err)

	again, err := Open(root)
	require.NoError(t, err)
	head, err := again.Head()
	require.NoError(t, err)
	assert.Equal(t, id, head)

	infos, err := again.List()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestSnapshot_RoundTripRestore(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "alpha\n")
	writeFile(t, root, "dir/b.txt", "beta\n")

	files := []string{"a.txt", "dir/b.txt"}
	id, err := s.Snapshot(files)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "ALPHA\n")
	writeFile(t, root, "dir/b.txt", "BETA\n")

	restored, err := s.Restore(id, files)
	require.NoError(t, err)
	assert.Equal(t, files, restored)
	assert.Equal(t, "alpha\n", readFile(t, root, "a.txt"))
	assert.Equal(t, "beta\n", readFile(t, root, "dir/b.txt"))
}

func TestSnapshot_AcceptsAbsolutePaths(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "x\n")

	id, err := s.Snapshot([]string{filepath.Join(root, "a.txt")})
	require.NoError(t, err)

	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, snap.Files)
}

func TestSnapshot_RejectsPathOutsideRoot(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_, err := s.Snapshot([]string{"../escape.txt"})
	assert.Error(t, err)
}

func TestSnapshot_MonotonicHistory(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)

	const n = 4
	var ids []ID
	for i := 0; i < n; i++ {
		writeFile(t, root, "f.txt", string(rune('a'+i))+"\n")
		id, err := s.Snapshot([]string{"f.txt"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, n+1)

	seen := map[ID]bool{}
	for _, info := range infos {
		assert.False(t, seen[info.ID], "duplicate id %s", info.ID)
		seen[info.ID] = true
	}
	assert.Equal(t, ids[n-1], infos[0].ID, "newest first")
	assert.Equal(t, ids[n-2], infos[0].Parent)
	assert.Equal(t, ids[0], infos[n-1].ID)
}

func TestSnapshot_MissingFileRecordedAsRemoved(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "gone.txt", "bye\n")
	writeFile(t, root, "kept.txt", "hi\n")

	_, err := s.Snapshot([]string{"gone.txt", "kept.txt"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))
	id, err := s.Snapshot([]string{"gone.txt"})
	require.NoError(t, err)

	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.txt"}, snap.Files)
}

func TestSnapshot_ParentReplacedByFileRecordedAsRemoved(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "pkg/mod.py", "x = 1\n")
	writeFile(t, root, "top.txt", "top\n")
	_, err := s.Snapshot([]string{"pkg/mod.py", "top.txt"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "pkg")))
	writeFile(t, root, "pkg", "now a file\n")
	id, err := s.Snapshot([]string{"pkg/mod.py"})
	require.NoError(t, err)

	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"top.txt"}, snap.Files)
}

func TestSnapshot_ConcurrentCallersSerialize(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)

	const n = 8
	for i := 0; i < n; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.txt", i), fmt.Sprintf("%d\n", i))
	}

	var wg sync.WaitGroup
	ids := make([]ID, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.Snapshot([]string{fmt.Sprintf("f%d.txt", i)})
		}(i)
	}
	wg.Wait()

	seen := map[ID]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		seen[ids[i]] = true
	}
	assert.Len(t, seen, n, "every snapshot gets its own id")

	infos, err := s.List()
	require.NoError(t, err)
	assert.Len(t, infos, n+1)

	head, err := s.Head()
	require.NoError(t, err)
	snap, err := s.Get(head)
	require.NoError(t, err)
	assert.Len(t, snap.Files, n, "no snapshot lost another's file")
}

func TestSnapshot_NeverSnapshottedPathStaysAbsent(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "tracked.txt", "t\n")
	writeFile(t, root, "untracked.txt", "u\n")

	id, err := s.Snapshot([]string{"tracked.txt"})
	require.NoError(t, err)

	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"tracked.txt"}, snap.Files)
}

func TestSnapshot_DirectoryFailsWithoutAdvancingHead(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "a\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	before, err := s.Head()
	require.NoError(t, err)

	_, err = s.Snapshot([]string{"a.txt", "sub"})
	require.Error(t, err)

	after, err := s.Head()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSnapshot_Message(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "a\n")

	id, err := s.Snapshot([]string{"a.txt"}, WithMessage("before refactor"))
	require.NoError(t, err)
	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "before refactor", snap.Message)

	id, err = s.Snapshot([]string{"a.txt"})
	require.NoError(t, err)
	snap, err = s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "snapshot: 1 file(s): a.txt", snap.Message)
}

func TestSnapshot_FileReplacedByDirectory(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "node", "file\n")
	_, err := s.Snapshot([]string{"node"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "node")))
	writeFile(t, root, "node/child.txt", "child\n")
	id, err := s.Snapshot([]string{"node/child.txt"})
	require.NoError(t, err)

	snap, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"node/child.txt"}, snap.Files)
}

func TestRestore_NilWritesEveryBlob(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "a\n")
	writeFile(t, root, "deep/nested/b.txt", "b\n")
	id, err := s.Snapshot([]string{"a.txt", "deep/nested/b.txt"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "deep")))
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	writeFile(t, root, "extra.txt", "keep me\n")

	restored, err := s.Restore(id, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "deep/nested/b.txt"}, restored)
	assert.Equal(t, "a\n", readFile(t, root, "a.txt"))
	assert.Equal(t, "b\n", readFile(t, root, "deep/nested/b.txt"))
	assert.Equal(t, "keep me\n", readFile(t, root, "extra.txt"), "restore never deletes")
}

func TestRestore_StopsAtFirstWriteFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
	}{
		{"full", nil},
		{"selective", []string{"a.txt", "b/c.txt", "d.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, root := newTestStore(t)
			writeFile(t, root, "a.txt", "a\n")
			writeFile(t, root, "b/c.txt", "c\n")
			writeFile(t, root, "d.txt", "d\n")
			id, err := s.Snapshot([]string{"a.txt", "b/c.txt", "d.txt"})
			require.NoError(t, err)

			writeFile(t, root, "a.txt", "changed a\n")
			writeFile(t, root, "d.txt", "changed d\n")
			require.NoError(t, os.RemoveAll(filepath.Join(root, "b")))
			writeFile(t, root, "b", "file in the way\n")

			restored, err := s.Restore(id, tt.files)
			require.Error(t, err)
			assert.Equal(t, []string{"a.txt"}, restored)
			assert.Equal(t, "a\n", readFile(t, root, "a.txt"))
			assert.Equal(t, "changed d\n", readFile(t, root, "d.txt"), "writes after the failure are skipped")
		})
	}
}

func TestRestore_SkipsPathsAbsentFromSnapshot(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "a\n")
	id, err := s.Snapshot([]string{"a.txt"})
	require.NoError(t, err)

	writeFile(t, root, "other.txt", "other\n")
	restored, err := s.Restore(id, []string{"other.txt", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, restored)
	assert.Equal(t, "other\n", readFile(t, root, "other.txt"))
}

func TestRestore_EmptyListWritesNothing(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	writeFile(t, root, "a.txt", "a\n")
	id, err := s.Snapshot([]string{"a.txt"})
	require.NoError(t, err)
	writeFile(t, root, "a.txt", "changed\n")

	restored, err := s.Restore(id, []string{})
	require.NoError(t, err)
	assert.Empty(t, restored)
	assert.Equal(t, "changed\n", readFile(t, root, "a.txt"))
}

func TestRestore_PreservesExecutableBit(t *testing.T) {
	t.Parallel()
	s, root := newTestStore(t)
	path := filepath.Join(root, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	id, err := s.Snapshot([]string{"run.sh"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = s.Restore(id, nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestRestore_UnknownSnapshot(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_, err := s.Restore(ID("0123456789012345678901234567890123456789"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("  ABCDEF0123456789abcdef0123456789ABCDEF01\n")
	require.NoError(t, err)
	assert.Equal(t, ID("abcdef0123456789abcdef0123456789abcdef01"), id)
	assert.Equal(t, "abcdef01", id.Short())

	for _, bad := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}
