// Package sandbox manages the edit sandbox: a detached git worktree under
// <root>/.moss/shadow/worktree where edits are staged, validated with
// arbitrary commands, and then applied to the real tree or thrown away.
//
// Only paths written through Edit are tracked. Files produced as side
// effects of Validate (build output, caches) are never diffed or applied.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jward/moss/internal/fsutil"
)

const (
	shadowDir   = ".moss/shadow"
	worktreeDir = "worktree"
	stateFile   = "state.json"
)

// Sandbox is an open edit sandbox. Methods are safe for concurrent use; each
// holds the sandbox mutex for its full duration. At most one Sandbox per
// project root should be open at a time.
type Sandbox struct {
	mu sync.Mutex

	root     string
	path     string
	shell    string
	logger   *slog.Logger
	modified []string
	enabled  bool
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithLogger sets the logger for git commands and recovery warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShell sets the shell Validate runs commands with, as "<shell> -c cmd".
func WithShell(shell string) Option {
	return func(s *Sandbox) {
		if shell != "" {
			s.shell = shell
		}
	}
}

// state is the persisted part of a sandbox, kept next to the worktree so a
// reused sandbox remembers its edits across processes.
type state struct {
	Enabled  bool     `json:"enabled"`
	Modified []string `json:"modified"`
}

// Open returns the sandbox for the git repository at root. An existing valid
// worktree is reused together with its recorded edits. Otherwise a new
// worktree is created detached at HEAD, with one bounded recovery attempt:
//
//   - registered but missing directory: prune stale registrations, retry once
//   - directory already exists: force-remove it and its registration, retry once
//
// Any other failure, or a failed retry, is returned.
func Open(ctx context.Context, root string, opts ...Option) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioErrorf("resolve root %s: %v", root, err)
	}

	s := &Sandbox{
		root:   abs,
		path:   filepath.Join(abs, filepath.FromSlash(shadowDir), worktreeDir),
		shell:  "sh",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.valid(ctx) {
		s.logger.Debug("sandbox reused", slog.String("path", s.path))
		if err := s.loadState(); err != nil {
			s.logger.Warn("sandbox state unreadable, starting empty",
				slog.String("path", s.statePath()),
				slog.String("error", err.Error()),
			)
			s.modified = nil
		}
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, ioErrorf("create %s: %v", filepath.Dir(s.path), err)
	}
	if err := s.create(ctx); err != nil {
		return nil, err
	}
	if err := s.saveState(); err != nil {
		return nil, err
	}
	s.logger.Debug("sandbox created", slog.String("path", s.path))
	return s, nil
}

// valid reports whether the worktree directory exists and git recognizes it.
func (s *Sandbox) valid(ctx context.Context) bool {
	if _, err := os.Stat(filepath.Join(s.path, ".git")); err != nil {
		return false
	}
	_, err := s.git(ctx, s.path, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

func (s *Sandbox) create(ctx context.Context) error {
	err := s.addWorktree(ctx)
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "missing but already registered"):
		s.logger.Warn("sandbox registered but missing, pruning", slog.String("path", s.path))
		if _, err := s.git(ctx, s.root, "worktree", "prune"); err != nil {
			return err
		}
	case strings.Contains(msg, "already exists"):
		// Assumes no other process is using the directory.
		s.logger.Warn("sandbox directory in the way, force removing", slog.String("path", s.path))
		_, _ = s.git(ctx, s.root, "worktree", "remove", "--force", s.path)
		if err := os.RemoveAll(s.path); err != nil {
			return ioErrorf("remove %s: %v", s.path, err)
		}
		if _, err := s.git(ctx, s.root, "worktree", "prune"); err != nil {
			return err
		}
	default:
		return err
	}
	return s.addWorktree(ctx)
}

func (s *Sandbox) addWorktree(ctx context.Context) error {
	_, err := s.git(ctx, s.root, "worktree", "add", "--detach", s.path, "HEAD")
	return err
}

// Root returns the main repository root.
func (s *Sandbox) Root() string {
	return s.root
}

// Path returns the sandbox worktree directory.
func (s *Sandbox) Path() string {
	return s.path
}

// Sync hard-resets the sandbox to the main repository's current HEAD,
// removes untracked files and clears the modified set.
func (s *Sandbox) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetToHead(ctx)
}

// Reset discards every sandbox edit. It is Sync under the name callers use
// when abandoning work.
func (s *Sandbox) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetToHead(ctx)
}

func (s *Sandbox) resetToHead(ctx context.Context) error {
	out, err := s.git(ctx, s.root, "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	sha := strings.TrimSpace(out)
	if _, err := s.git(ctx, s.path, "reset", "--hard", sha); err != nil {
		return err
	}
	if _, err := s.git(ctx, s.path, "clean", "-fd"); err != nil {
		return err
	}
	s.modified = nil
	return s.saveState()
}

// Enable marks the sandbox as the destination for file edits.
func (s *Sandbox) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return s.saveState()
}

// Disable routes file edits back to the real tree.
func (s *Sandbox) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return s.saveState()
}

// Enabled reports whether edits should be routed through the sandbox.
func (s *Sandbox) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// git runs a git subcommand in dir and returns stdout. Failures become
// KindGit errors carrying git's stderr.
func (s *Sandbox) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("git", slog.String("dir", dir), slog.String("args", strings.Join(args, " ")))
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return stdout.String(), &Error{Kind: KindGit, Msg: "git " + args[0] + ": " + detail}
	}
	return stdout.String(), nil
}

// EnabledAt reports whether the sandbox recorded for root has routing
// enabled, without opening or creating the worktree.
func EnabledAt(root string) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	s := &Sandbox{path: filepath.Join(abs, filepath.FromSlash(shadowDir), worktreeDir)}
	if err := s.loadState(); err != nil {
		return false
	}
	return s.enabled
}

func (s *Sandbox) statePath() string {
	return filepath.Join(filepath.Dir(s.path), stateFile)
}

func (s *Sandbox) loadState() error {
	data, err := os.ReadFile(s.statePath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	s.enabled = st.Enabled
	s.modified = st.Modified
	return nil
}

func (s *Sandbox) saveState() error {
	st := state{Enabled: s.enabled, Modified: s.modified}
	if st.Modified == nil {
		st.Modified = []string{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return ioErrorf("encode state: %v", err)
	}
	if err := fsutil.WriteFileAtomic(s.statePath(), data, 0o644); err != nil {
		return ioErrorf("write %s: %v", s.statePath(), err)
	}
	return nil
}

func (s *Sandbox) abs(rel string) string {
	return filepath.Join(s.path, filepath.FromSlash(rel))
}
