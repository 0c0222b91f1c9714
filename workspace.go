package moss

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jward/moss/internal/config"
	"github.com/jward/moss/internal/fsutil"
	"github.com/jward/moss/internal/journal"
	"github.com/jward/moss/internal/sandbox"
	"github.com/jward/moss/internal/shadow"
	"github.com/jward/moss/internal/structure"
)

const (
	stateDir    = ".moss"
	journalFile = "journal.db"
)

// ErrJournalDisabled is returned by Journal when journal.enabled is false.
var ErrJournalDisabled = errors.New("moss: journal disabled")

// Workspace is the single explicit handle on a project root: its snapshot
// store, its operation journal, and (opened on first use) its edit sandbox.
type Workspace struct {
	root       string
	cfg        *config.Config
	logger     *slog.Logger
	store      *shadow.Store
	journal    *journal.Journal
	scriptsDir string
	scriptsFS  fs.FS

	mu      sync.Mutex
	sandbox *sandbox.Sandbox
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger shared by every component of the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// WithConfig uses cfg instead of loading the layered YAML configuration.
func WithConfig(cfg *Config) Option {
	return func(w *Workspace) {
		w.cfg = cfg
	}
}

// WithScriptsDir sets the directory scripts and their imports resolve
// against.
func WithScriptsDir(dir string) Option {
	return func(w *Workspace) {
		w.scriptsDir = dir
	}
}

// WithScriptsFS loads scripts from fsys instead of from disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(w *Workspace) {
		w.scriptsFS = fsys
	}
}

// Open opens the workspace rooted at root. The snapshot store is created on
// first use; the sandbox is not touched until Sandbox is called.
func Open(root string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("moss: resolve root: %w", err)
	}
	w := &Workspace{root: abs, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}

	if w.cfg == nil {
		cfg, err := config.NewLoader(w.logger).Load(abs)
		if err != nil {
			return nil, fmt.Errorf("moss: load config: %w", err)
		}
		w.cfg = cfg
	} else if err := w.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("moss: invalid config: %w", err)
	}

	if err := ensureStateDir(abs); err != nil {
		return nil, err
	}

	w.store, err = shadow.Open(abs, w.storeOptions()...)
	if err != nil {
		return nil, err
	}

	if w.cfg.JournalEnabled() {
		j, err := journal.Open(filepath.Join(abs, stateDir, journalFile))
		if err != nil {
			return nil, fmt.Errorf("moss: %w", err)
		}
		if err := j.Migrate(); err != nil {
			j.Close()
			return nil, fmt.Errorf("moss: migrate journal: %w", err)
		}
		w.journal = j
	}
	return w, nil
}

func (w *Workspace) storeOptions() []shadow.Option {
	opts := []shadow.Option{
		shadow.WithLogger(w.logger),
		shadow.WithAuthor(w.cfg.Shadow.AuthorName, w.cfg.Shadow.AuthorEmail),
		shadow.WithContextLines(w.cfg.ContextLinesOrDefault()),
	}
	if w.cfg.AnnotateSymbolsEnabled() {
		opts = append(opts, shadow.WithSymbolLocator(structure.NewLocator()))
	}
	return opts
}

func (w *Workspace) sandboxOptions() []sandbox.Option {
	return []sandbox.Option{
		sandbox.WithLogger(w.logger),
		sandbox.WithShell(w.cfg.Sandbox.Shell),
	}
}

// ensureStateDir creates <root>/.moss with a .gitignore so the project's own
// repository never picks up moss state.
func ensureStateDir(root string) error {
	ignore := filepath.Join(root, stateDir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return nil
	}
	if err := fsutil.WriteFileAtomic(ignore, []byte("*\n"), 0o644); err != nil {
		return fmt.Errorf("moss: create state directory: %w", err)
	}
	return nil
}

// Close releases the journal database.
func (w *Workspace) Close() error {
	if w.journal != nil {
		return w.journal.Close()
	}
	return nil
}

// Root returns the absolute project root.
func (w *Workspace) Root() string {
	return w.root
}

// Config returns the effective configuration.
func (w *Workspace) Config() *Config {
	return w.cfg
}

// Store returns the snapshot store for direct, unjournaled access.
func (w *Workspace) Store() *shadow.Store {
	return w.store
}

// Sandbox returns the edit sandbox, opening or creating it on first call.
func (w *Workspace) Sandbox(ctx context.Context) (*Sandbox, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sandbox != nil {
		return w.sandbox, nil
	}
	sb, err := sandbox.Open(ctx, w.root, w.sandboxOptions()...)
	if err != nil {
		return nil, err
	}
	w.sandbox = sb
	return sb, nil
}

// Snapshot records files and journals the operation.
func (w *Workspace) Snapshot(files []string, opts ...SnapshotOption) (ID, error) {
	id, err := w.store.Snapshot(files, opts...)
	if err != nil {
		return "", err
	}
	w.record(journal.Entry{Kind: journal.KindSnapshot, SnapshotID: id.String(), Paths: files})
	return id, nil
}

// Hunks diffs the working tree against the latest snapshot.
func (w *Workspace) Hunks() ([]Hunk, error) {
	return w.store.Hunks()
}

// HunksSince diffs the working tree against snapshot id.
func (w *Workspace) HunksSince(id ID) ([]Hunk, error) {
	return w.store.HunksSince(id)
}

// Restore writes files from snapshot id back to the project and journals the
// paths written, including a partial list when Restore fails midway.
func (w *Workspace) Restore(id ID, files []string) ([]string, error) {
	written, err := w.store.Restore(id, files)
	if len(written) > 0 || err == nil {
		entry := journal.Entry{Kind: journal.KindRestore, SnapshotID: id.String(), Paths: written}
		if err != nil {
			entry.Detail = "partial: " + err.Error()
		}
		w.record(entry)
	}
	return written, err
}

// WriteFile is the edit entry point for tools. While the sandbox is enabled
// the write lands in the sandbox only. Otherwise the current content of path
// is snapshotted first and then the real file is replaced.
func (w *Workspace) WriteFile(ctx context.Context, path string, content []byte) error {
	rel, err := fsutil.RelTo(w.root, path)
	if err != nil {
		return fmt.Errorf("moss: write %s: %w", path, err)
	}

	if sandbox.EnabledAt(w.root) {
		sb, err := w.Sandbox(ctx)
		if err != nil {
			return err
		}
		return sb.Edit(rel, content)
	}

	if _, err := w.Snapshot([]string{rel}, shadow.WithMessage("before write: "+rel)); err != nil {
		return err
	}
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	perm := os.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode().Perm()
	}
	if err := fsutil.WriteFileAtomic(abs, content, perm); err != nil {
		return fmt.Errorf("moss: write %s: %w", rel, err)
	}
	return nil
}

// ApplySandbox copies the sandbox's modified files into the project.
func (w *Workspace) ApplySandbox(ctx context.Context) ([]string, error) {
	sb, err := w.Sandbox(ctx)
	if err != nil {
		return nil, err
	}
	return w.apply(sb)
}

func (w *Workspace) apply(sb *sandbox.Sandbox) ([]string, error) {
	applied, err := sb.Apply()
	if len(applied) > 0 || err == nil {
		entry := journal.Entry{Kind: journal.KindApply, Paths: applied}
		if err != nil {
			entry.Detail = "partial: " + err.Error()
		}
		w.record(entry)
	}
	return applied, err
}

// ResetSandbox discards every sandbox edit.
func (w *Workspace) ResetSandbox(ctx context.Context) error {
	return w.resetLike(ctx, journal.KindReset, (*sandbox.Sandbox).Reset)
}

// SyncSandbox moves the sandbox to the project's current HEAD.
func (w *Workspace) SyncSandbox(ctx context.Context) error {
	return w.resetLike(ctx, journal.KindSync, (*sandbox.Sandbox).Sync)
}

func (w *Workspace) resetLike(ctx context.Context, kind journal.Kind, fn func(*sandbox.Sandbox, context.Context) error) error {
	sb, err := w.Sandbox(ctx)
	if err != nil {
		return err
	}
	return w.resetWith(ctx, sb, kind, fn)
}

func (w *Workspace) resetWith(ctx context.Context, sb *sandbox.Sandbox, kind journal.Kind, fn func(*sandbox.Sandbox, context.Context) error) error {
	discarded := sb.Modified()
	if err := fn(sb, ctx); err != nil {
		return err
	}
	w.record(journal.Entry{Kind: kind, Paths: discarded})
	return nil
}

// RunChecks runs the configured sandbox checks against the current edits.
func (w *Workspace) RunChecks(ctx context.Context) (CheckReport, error) {
	sb, err := w.Sandbox(ctx)
	if err != nil {
		return CheckReport{}, err
	}
	return sb.RunChecks(ctx, w.cfg.Sandbox.Checks), nil
}

// Journal returns up to limit journal entries, newest first. A limit <= 0
// returns everything. kind, when non-empty, filters by operation kind.
func (w *Workspace) Journal(kind string, limit int) ([]JournalEntry, error) {
	if w.journal == nil {
		return nil, ErrJournalDisabled
	}
	if kind == "" {
		return w.journal.Recent(limit)
	}
	return w.journal.ByKind(journal.Kind(strings.ToLower(kind)), limit)
}

// record journals e. A journal failure never fails the operation that has
// already happened; it is logged instead.
func (w *Workspace) record(e journal.Entry) {
	if w.journal == nil {
		return
	}
	if _, err := w.journal.Record(e); err != nil {
		w.logger.Warn("journal record failed",
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
