package shadow

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jward/moss/internal/fsutil"
)

// SnapshotOption configures a single Snapshot call.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	message string
}

// WithMessage sets the snapshot's commit message.
func WithMessage(msg string) SnapshotOption {
	return func(c *snapshotConfig) {
		c.message = msg
	}
}

// Snapshot records the current on-disk content of files on top of the head
// snapshot and returns the new snapshot's id. Paths are relative to the store
// root or absolute paths under it. A path missing from disk is recorded as
// removed. Paths not named keep whatever the head snapshot recorded.
//
// Every file is staged before anything is committed, so a read failure
// returns an error without advancing head.
func (s *Store) Snapshot(files []string, opts ...SnapshotOption) (ID, error) {
	cfg := snapshotConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.headHash()
	if err != nil {
		return "", err
	}
	_, tree, err := s.commitTree(parent)
	if err != nil {
		return "", err
	}
	entries, err := flatten(tree)
	if err != nil {
		return "", err
	}

	staged := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := fsutil.RelTo(s.root, f)
		if err != nil {
			return "", fmt.Errorf("shadow: snapshot: %w", err)
		}
		if err := s.stage(entries, rel); err != nil {
			return "", err
		}
		staged = append(staged, rel)
	}

	treeHash, err := s.writeTree(entries)
	if err != nil {
		return "", fmt.Errorf("shadow: write tree: %w", err)
	}

	msg := cfg.message
	if msg == "" {
		msg = defaultMessage(staged)
	}
	h, err := s.commit(treeHash, []plumbing.Hash{parent}, msg)
	if err != nil {
		return "", fmt.Errorf("shadow: commit: %w", err)
	}

	s.logger.Debug("shadow snapshot",
		slog.String("id", h.String()),
		slog.Int("files", len(staged)),
	)
	return ID(h.String()), nil
}

// stage updates entries with the on-disk state of rel.
func (s *Store) stage(entries map[string]fileEntry, rel string) error {
	info, err := os.Lstat(s.abs(rel))
	if fsutil.IsNotExist(err) {
		delete(entries, rel)
		return nil
	}
	if err != nil {
		return fmt.Errorf("shadow: stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Errorf("shadow: %s is a directory", rel)
	}

	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return fmt.Errorf("shadow: read %s: %w", rel, err)
	}
	h, err := s.writeBlob(data)
	if err != nil {
		return fmt.Errorf("shadow: store %s: %w", rel, err)
	}

	mode := filemode.Regular
	if info.Mode().Perm()&0o111 != 0 {
		mode = filemode.Executable
	}

	// The disk is authoritative for file/directory shape: drop any entry
	// that is now a parent directory of rel, or that lives below rel.
	for p := range entries {
		if strings.HasPrefix(rel, p+"/") || strings.HasPrefix(p, rel+"/") {
			delete(entries, p)
		}
	}
	entries[rel] = fileEntry{hash: h, mode: mode}
	return nil
}

func (s *Store) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// treeNode is an in-memory directory used while writing nested trees.
type treeNode struct {
	files map[string]fileEntry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: map[string]fileEntry{}, dirs: map[string]*treeNode{}}
}

// writeTree stores the nested tree objects for entries and returns the root
// tree hash.
func (s *Store) writeTree(entries map[string]fileEntry) (plumbing.Hash, error) {
	root := newTreeNode()
	for p, e := range entries {
		node := root
		parts := strings.Split(p, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files[parts[len(parts)-1]] = e
	}
	return s.writeNode(root)
}

func (s *Store) writeNode(n *treeNode) (plumbing.Hash, error) {
	tree := &object.Tree{}
	for name, e := range n.files {
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: e.mode, Hash: e.hash})
	}
	for name, child := range n.dirs {
		h, err := s.writeNode(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	sort.Sort(object.TreeEntrySorter(tree.Entries))

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// commit writes a commit object and advances the shadow branch to it.
func (s *Store) commit(tree plumbing.Hash, parents []plumbing.Hash, msg string) (plumbing.Hash, error) {
	sig := object.Signature{Name: s.authorName, Email: s.authorEmail, When: s.now()}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, h)); err != nil {
		return plumbing.ZeroHash, err
	}
	return h, nil
}

func defaultMessage(paths []string) string {
	const maxNames = 5
	names := paths
	suffix := ""
	if len(names) > maxNames {
		names = names[:maxNames]
		suffix = ", ..."
	}
	return fmt.Sprintf("snapshot: %d file(s): %s%s", len(paths), strings.Join(names, ", "), suffix)
}
