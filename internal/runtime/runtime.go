package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/moss/internal/sandbox"
	"github.com/jward/moss/internal/shadow"
)

// ShadowStore is the snapshot surface bound to scripts. *shadow.Store
// satisfies it.
type ShadowStore interface {
	Root() string
	Snapshot(files []string, opts ...shadow.SnapshotOption) (shadow.ID, error)
	Hunks() ([]shadow.Hunk, error)
	HunksSince(id shadow.ID) ([]shadow.Hunk, error)
	Restore(id shadow.ID, files []string) ([]string, error)
	Head() (shadow.ID, error)
	List() ([]shadow.Info, error)
}

// EditSandbox is the sandbox surface bound to scripts. *sandbox.Sandbox
// satisfies it.
type EditSandbox interface {
	Path() string
	Sync(ctx context.Context) error
	Reset(ctx context.Context) error
	Enable() error
	Disable() error
	Enabled() bool
	Modified() []string
	Edit(path string, content []byte) error
	Read(path string) ([]byte, error)
	Validate(ctx context.Context, command string) sandbox.ValidationResult
	Diff(ctx context.Context) ([]sandbox.FileDiff, error)
	Apply() ([]string, error)
}

// Runtime embeds a Risor VM and exposes the snapshot store and the edit
// sandbox to automation scripts.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	shadow     ShadowStore
	sandbox    EditSandbox
	logger     *slog.Logger
	shadowOpts []shadow.Option
	sbOpts     []sandbox.Option
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithShadow binds the "shadow" global to s.
func WithShadow(s ShadowStore) RuntimeOption {
	return func(r *Runtime) {
		r.shadow = s
	}
}

// WithSandbox binds the "sandbox" global to sb.
func WithSandbox(sb EditSandbox) RuntimeOption {
	return func(r *Runtime) {
		r.sandbox = sb
	}
}

// WithLogger sets the logger behind the script "log" global.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithShadowOptions sets the options used by shadow_open.
func WithShadowOptions(opts ...shadow.Option) RuntimeOption {
	return func(r *Runtime) {
		r.shadowOpts = opts
	}
}

// WithSandboxOptions sets the options used by sandbox_open.
func WithSandboxOptions(opts ...sandbox.Option) RuntimeOption {
	return func(r *Runtime) {
		r.sbOpts = opts
	}
}

// NewRuntime creates a Runtime that resolves scripts and imports relative to
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", slog.String("script", label))
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code. Relative paths
// resolve against the configured fs.FS or scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"shadow_open":  r.makeShadowOpenFn(),
		"sandbox_open": r.makeSandboxOpenFn(),
		"language_for": makeLanguageForFn(),
		"symbol_at":    makeSymbolAtFn(),
		"log":          mustProxy(&logObject{logger: r.logger.With(slog.String("source", "script"))}),
	}
	if r.shadow != nil {
		globals["shadow"] = shadowHandle(r.shadow)
	}
	if r.sandbox != nil {
		globals["sandbox"] = sandboxHandle(r.sandbox)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
