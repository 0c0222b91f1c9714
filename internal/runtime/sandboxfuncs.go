package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/moss/internal/sandbox"
)

// sandboxHandle exposes a Sandbox to scripts as a map of bound builtins.
// Methods without a useful result return nil; failures raise, except that
// apply returns {paths, error} once any path was copied.
func sandboxHandle(sb EditSandbox) *object.Map {
	noArgs := func(name string, fn func(ctx context.Context) object.Object) *object.Builtin {
		return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 0 {
				return object.NewArgsError(name, 0, len(args))
			}
			return fn(ctx)
		})
	}
	errOrNil := func(name string, err error) object.Object {
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return object.Nil
	}

	return object.NewMap(map[string]object.Object{
		"path": object.NewString(sb.Path()),

		"sync": noArgs("sandbox.sync", func(ctx context.Context) object.Object {
			return errOrNil("sandbox.sync", sb.Sync(ctx))
		}),
		"reset": noArgs("sandbox.reset", func(ctx context.Context) object.Object {
			return errOrNil("sandbox.reset", sb.Reset(ctx))
		}),
		"enable": noArgs("sandbox.enable", func(ctx context.Context) object.Object {
			return errOrNil("sandbox.enable", sb.Enable())
		}),
		"disable": noArgs("sandbox.disable", func(ctx context.Context) object.Object {
			return errOrNil("sandbox.disable", sb.Disable())
		}),
		"enabled": noArgs("sandbox.enabled", func(ctx context.Context) object.Object {
			return object.NewBool(sb.Enabled())
		}),
		"modified": noArgs("sandbox.modified", func(ctx context.Context) object.Object {
			return stringList(sb.Modified())
		}),

		"edit": object.NewBuiltin("sandbox.edit", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 2 {
				return object.NewArgsError("sandbox.edit", 2, len(args))
			}
			path, err := toString(args[0])
			if err != nil {
				return object.Errorf("sandbox.edit: path: %v", err)
			}
			content, err := toString(args[1])
			if err != nil {
				return object.Errorf("sandbox.edit: content: %v", err)
			}
			return errOrNil("sandbox.edit", sb.Edit(path, []byte(content)))
		}),

		"read": object.NewBuiltin("sandbox.read", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("sandbox.read", 1, len(args))
			}
			path, err := toString(args[0])
			if err != nil {
				return object.Errorf("sandbox.read: path: %v", err)
			}
			data, err := sb.Read(path)
			if err != nil {
				return object.Errorf("sandbox.read: %v", err)
			}
			return object.NewString(string(data))
		}),

		"validate": object.NewBuiltin("sandbox.validate", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("sandbox.validate", 1, len(args))
			}
			cmd, err := toString(args[0])
			if err != nil {
				return object.Errorf("sandbox.validate: command: %v", err)
			}
			res := sb.Validate(ctx, cmd)
			return object.NewMap(map[string]object.Object{
				"success":   object.NewBool(res.Success),
				"stdout":    object.NewString(res.Stdout),
				"stderr":    object.NewString(res.Stderr),
				"exit_code": object.NewInt(int64(res.ExitCode)),
			})
		}),

		"diff": noArgs("sandbox.diff", func(ctx context.Context) object.Object {
			diffs, err := sb.Diff(ctx)
			if err != nil {
				return object.Errorf("sandbox.diff: %v", err)
			}
			return object.NewString(sandbox.JoinPatches(diffs))
		}),

		"apply": noArgs("sandbox.apply", func(ctx context.Context) object.Object {
			applied, err := sb.Apply()
			return pathsResult("sandbox.apply", applied, err)
		}),
	})
}

// makeSandboxOpenFn creates "sandbox_open".
//
// sandbox_open(root) → sandbox handle
func (r *Runtime) makeSandboxOpenFn() *object.Builtin {
	return object.NewBuiltin("sandbox_open", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("sandbox_open", 1, len(args))
		}
		root, err := toString(args[0])
		if err != nil {
			return object.Errorf("sandbox_open: root: %v", err)
		}
		opts := append([]sandbox.Option{sandbox.WithLogger(r.logger)}, r.sbOpts...)
		sb, err := sandbox.Open(ctx, root, opts...)
		if err != nil {
			return object.Errorf("sandbox_open: %v", err)
		}
		return sandboxHandle(sb)
	})
}
