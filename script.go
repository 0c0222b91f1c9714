package moss

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jward/moss/internal/journal"
	"github.com/jward/moss/internal/runtime"
	"github.com/jward/moss/internal/sandbox"
	"github.com/jward/moss/internal/shadow"
)

// RunScript executes a Risor script with the workspace's snapshot store
// bound to "shadow". When the root is a git repository the sandbox is opened
// and bound to "sandbox" as well. Snapshot, restore, apply, sync and reset
// issued through the bound handles are journaled like their Go counterparts.
func (w *Workspace) RunScript(ctx context.Context, path string, globals map[string]any) error {
	rt, err := w.newRuntime(ctx)
	if err != nil {
		return err
	}
	return rt.RunScript(ctx, path, globals)
}

// RunSource is RunScript for inline source.
func (w *Workspace) RunSource(ctx context.Context, source string, globals map[string]any) error {
	rt, err := w.newRuntime(ctx)
	if err != nil {
		return err
	}
	return rt.RunSource(ctx, source, globals)
}

func (w *Workspace) newRuntime(ctx context.Context) (*runtime.Runtime, error) {
	opts := []runtime.RuntimeOption{
		runtime.WithLogger(w.logger),
		runtime.WithShadow(journaledStore{Store: w.store, w: w}),
		runtime.WithShadowOptions(w.storeOptions()...),
		runtime.WithSandboxOptions(w.sandboxOptions()...),
	}
	if w.scriptsFS != nil {
		opts = append(opts, runtime.WithRuntimeFS(w.scriptsFS))
	}

	w.mu.Lock()
	sb := w.sandbox
	w.mu.Unlock()
	if sb == nil && isGitRepo(w.root) {
		var err error
		if sb, err = w.Sandbox(ctx); err != nil {
			return nil, err
		}
	}
	if sb != nil {
		opts = append(opts, runtime.WithSandbox(journaledSandbox{Sandbox: sb, w: w}))
	}
	return runtime.NewRuntime(w.scriptsDir, opts...), nil
}

func isGitRepo(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

// journaledStore routes the mutating store calls of scripts through the
// workspace.
type journaledStore struct {
	*shadow.Store
	w *Workspace
}

func (s journaledStore) Snapshot(files []string, opts ...shadow.SnapshotOption) (shadow.ID, error) {
	return s.w.Snapshot(files, opts...)
}

func (s journaledStore) Restore(id shadow.ID, files []string) ([]string, error) {
	return s.w.Restore(id, files)
}

type journaledSandbox struct {
	*sandbox.Sandbox
	w *Workspace
}

func (sb journaledSandbox) Apply() ([]string, error) {
	return sb.w.apply(sb.Sandbox)
}

func (sb journaledSandbox) Sync(ctx context.Context) error {
	return sb.w.resetWith(ctx, sb.Sandbox, journal.KindSync, (*sandbox.Sandbox).Sync)
}

func (sb journaledSandbox) Reset(ctx context.Context) error {
	return sb.w.resetWith(ctx, sb.Sandbox, journal.KindReset, (*sandbox.Sandbox).Reset)
}
