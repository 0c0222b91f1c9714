// Package shadow implements the snapshot store: a private git repository
// under <root>/.moss/.git that records explicitly tracked files as a linear
// chain of commits, independent of the project's own history.
//
// Objects, trees and commits are written directly through go-git's storer;
// nothing here shells out to the git binary.
package shadow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	// DirName is the hidden directory holding all moss state.
	DirName = ".moss"

	branchRef plumbing.ReferenceName = "refs/heads/shadow"

	rootMessage = "Initial shadow snapshot"
)

// ID identifies a snapshot. It is the hex hash of the backing commit.
type ID string

func (id ID) String() string { return string(id) }

// Short returns the abbreviated form used in human-readable output.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

func (id ID) hash() plumbing.Hash { return plumbing.NewHash(string(id)) }

// ParseID validates s as a full 40-character hex snapshot id.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) != 40 || !plumbing.IsHash(s) {
		return "", fmt.Errorf("shadow: invalid snapshot id %q", s)
	}
	return ID(strings.ToLower(s)), nil
}

// SymbolLocator names the declaration enclosing a 1-based line of a file.
// It returns "" when nothing encloses the line or the language is unknown.
type SymbolLocator interface {
	EnclosingSymbol(path string, src []byte, line int) string
}

// Store is an open snapshot repository. All methods are safe for concurrent
// use; each operation holds the store's mutex for its full duration.
type Store struct {
	mu sync.Mutex

	root         string
	repo         *git.Repository
	authorName   string
	authorEmail  string
	contextLines int
	symbols      SymbolLocator
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug records of each commit.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthor sets the signature recorded on snapshot commits.
func WithAuthor(name, email string) Option {
	return func(s *Store) {
		if name != "" {
			s.authorName = name
		}
		if email != "" {
			s.authorEmail = email
		}
	}
}

// WithContextLines sets the number of unchanged lines kept around each hunk.
func WithContextLines(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.contextLines = n
		}
	}
}

// WithSymbolLocator enables Symbol annotation on hunks.
func WithSymbolLocator(l SymbolLocator) Option {
	return func(s *Store) {
		s.symbols = l
	}
}

// Open opens the snapshot repository under root, creating it on first use.
// A freshly created repository gets an empty root snapshot so Head is always
// defined. Open is idempotent.
func Open(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("shadow: resolve root: %w", err)
	}

	s := &Store{
		root:         abs,
		authorName:   "moss",
		authorEmail:  "moss@localhost",
		contextLines: 3,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	gitDir := filepath.Join(abs, DirName, ".git")
	repo, err := git.PlainOpen(gitDir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(gitDir, true)
		if err == nil {
			s.logger.Debug("shadow repository created", slog.String("path", gitDir))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("shadow: open repository %s: %w", gitDir, err)
	}
	s.repo = repo

	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureRoot points HEAD at the shadow branch and commits the empty root
// snapshot when the branch does not exist yet.
func (s *Store) ensureRoot() error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)
	if err := s.repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("shadow: set HEAD: %w", err)
	}

	_, err := s.repo.Storer.Reference(branchRef)
	if err == nil {
		return nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("shadow: read branch: %w", err)
	}

	treeHash, err := s.writeTree(map[string]fileEntry{})
	if err != nil {
		return fmt.Errorf("shadow: write root tree: %w", err)
	}
	if _, err := s.commit(treeHash, nil, rootMessage); err != nil {
		return fmt.Errorf("shadow: create root snapshot: %w", err)
	}
	return nil
}

// Root returns the absolute project root the store tracks files under.
func (s *Store) Root() string {
	return s.root
}

// Head returns the newest snapshot.
func (s *Store) Head() (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.headHash()
	if err != nil {
		return "", err
	}
	return ID(h.String()), nil
}

func (s *Store) headHash() (plumbing.Hash, error) {
	ref, err := s.repo.Storer.Reference(branchRef)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("shadow: read head: %w", err)
	}
	return ref.Hash(), nil
}

// Info describes one snapshot in the history.
type Info struct {
	ID      ID
	Parent  ID // empty for the root snapshot
	Message string
	When    time.Time
}

// Snapshot is a snapshot's metadata plus the sorted list of paths its tree
// records.
type Snapshot struct {
	Info
	Files []string
}

// List returns the full history, newest first.
func (s *Store) List() ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.headHash()
	if err != nil {
		return nil, err
	}

	var infos []Info
	for {
		c, err := s.repo.CommitObject(h)
		if err != nil {
			return nil, fmt.Errorf("shadow: read commit %s: %w", h, err)
		}
		infos = append(infos, infoFromCommit(c))
		if c.NumParents() == 0 {
			break
		}
		h = c.ParentHashes[0]
	}
	return infos, nil
}

// Get returns the snapshot identified by id.
func (s *Store) Get(id ID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, tree, err := s.commitTree(id.hash())
	if err != nil {
		return nil, err
	}
	entries, err := flatten(tree)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Info: infoFromCommit(c), Files: make([]string, 0, len(entries))}
	for p := range entries {
		snap.Files = append(snap.Files, p)
	}
	sort.Strings(snap.Files)
	return snap, nil
}

func infoFromCommit(c *object.Commit) Info {
	info := Info{
		ID:      ID(c.Hash.String()),
		Message: strings.TrimRight(c.Message, "\n"),
		When:    c.Committer.When,
	}
	if c.NumParents() > 0 {
		info.Parent = ID(c.ParentHashes[0].String())
	}
	return info
}

func (s *Store) commitTree(h plumbing.Hash) (*object.Commit, *object.Tree, error) {
	c, err := s.repo.CommitObject(h)
	if err != nil {
		return nil, nil, fmt.Errorf("shadow: snapshot %s: %w", h, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("shadow: tree of %s: %w", h, err)
	}
	return c, tree, nil
}

// fileEntry is a blob reference at a tree path.
type fileEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// flatten lists every blob in tree keyed by its slash path.
func flatten(tree *object.Tree) (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	w := object.NewTreeWalker(tree, true, nil)
	defer w.Close()
	for {
		name, e, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("shadow: walk tree: %w", err)
		}
		if e.Mode == filemode.Dir {
			continue
		}
		entries[name] = fileEntry{hash: e.Hash, mode: e.Mode}
	}
	return entries, nil
}

func (s *Store) readBlob(h plumbing.Hash) ([]byte, error) {
	blob, err := s.repo.BlobObject(h)
	if err != nil {
		return nil, fmt.Errorf("shadow: blob %s: %w", h, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("shadow: blob %s: %w", h, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("shadow: blob %s: %w", h, err)
	}
	return data, nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func osPerm(m filemode.FileMode) os.FileMode {
	if m == filemode.Executable {
		return 0o755
	}
	return 0o644
}
