package runtime

import (
	"context"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/moss/internal/shadow"
)

// shadowHandle exposes a Store to scripts as a map of bound builtins:
//
//	shadow.snapshot(files, [message]) → id
//	shadow.hunks() → [hunk]
//	shadow.hunks_since(id) → [hunk]
//	shadow.restore(id, [files]) → {paths, error}
//	shadow.head() → id
//	shadow.list() → [{id, parent, message, when}]
//
// restore reports the paths it wrote even when it fails partway; it raises
// only when nothing was written.
func shadowHandle(s ShadowStore) *object.Map {
	return object.NewMap(map[string]object.Object{
		"root": object.NewString(s.Root()),

		"snapshot": object.NewBuiltin("shadow.snapshot", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.NewArgsRangeError("shadow.snapshot", 1, 2, len(args))
			}
			files, err := toStringList(args[0])
			if err != nil {
				return object.Errorf("shadow.snapshot: files: %v", err)
			}
			var opts []shadow.SnapshotOption
			if len(args) == 2 {
				msg, err := toString(args[1])
				if err != nil {
					return object.Errorf("shadow.snapshot: message: %v", err)
				}
				opts = append(opts, shadow.WithMessage(msg))
			}
			id, err := s.Snapshot(files, opts...)
			if err != nil {
				return object.Errorf("shadow.snapshot: %v", err)
			}
			return object.NewString(id.String())
		}),

		"hunks": object.NewBuiltin("shadow.hunks", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 0 {
				return object.NewArgsError("shadow.hunks", 0, len(args))
			}
			hunks, err := s.Hunks()
			if err != nil {
				return object.Errorf("shadow.hunks: %v", err)
			}
			return hunksToList(hunks)
		}),

		"hunks_since": object.NewBuiltin("shadow.hunks_since", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("shadow.hunks_since", 1, len(args))
			}
			id, err := toID(args[0])
			if err != nil {
				return object.Errorf("shadow.hunks_since: %v", err)
			}
			hunks, err := s.HunksSince(id)
			if err != nil {
				return object.Errorf("shadow.hunks_since: %v", err)
			}
			return hunksToList(hunks)
		}),

		"restore": object.NewBuiltin("shadow.restore", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.NewArgsRangeError("shadow.restore", 1, 2, len(args))
			}
			id, err := toID(args[0])
			if err != nil {
				return object.Errorf("shadow.restore: %v", err)
			}
			var files []string
			if len(args) == 2 {
				if files, err = toStringList(args[1]); err != nil {
					return object.Errorf("shadow.restore: files: %v", err)
				}
			}
			written, err := s.Restore(id, files)
			return pathsResult("shadow.restore", written, err)
		}),

		"head": object.NewBuiltin("shadow.head", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 0 {
				return object.NewArgsError("shadow.head", 0, len(args))
			}
			id, err := s.Head()
			if err != nil {
				return object.Errorf("shadow.head: %v", err)
			}
			return object.NewString(id.String())
		}),

		"list": object.NewBuiltin("shadow.list", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 0 {
				return object.NewArgsError("shadow.list", 0, len(args))
			}
			infos, err := s.List()
			if err != nil {
				return object.Errorf("shadow.list: %v", err)
			}
			results := make([]object.Object, 0, len(infos))
			for _, info := range infos {
				results = append(results, object.NewMap(map[string]object.Object{
					"id":      object.NewString(info.ID.String()),
					"parent":  object.NewString(info.Parent.String()),
					"message": object.NewString(info.Message),
					"when":    object.NewString(info.When.UTC().Format(time.RFC3339)),
				}))
			}
			return object.NewList(results)
		}),
	})
}

// makeShadowOpenFn creates "shadow_open".
//
// shadow_open(root) → shadow handle
func (r *Runtime) makeShadowOpenFn() *object.Builtin {
	return object.NewBuiltin("shadow_open", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("shadow_open", 1, len(args))
		}
		root, err := toString(args[0])
		if err != nil {
			return object.Errorf("shadow_open: root: %v", err)
		}
		opts := append([]shadow.Option{shadow.WithLogger(r.logger)}, r.shadowOpts...)
		s, err := shadow.Open(root, opts...)
		if err != nil {
			return object.Errorf("shadow_open: %v", err)
		}
		return shadowHandle(s)
	})
}

// pathsResult builds the {paths, error} map returned by operations that may
// stop partway. A failure with no paths written raises instead.
func pathsResult(name string, paths []string, err error) object.Object {
	if err != nil && len(paths) == 0 {
		return object.Errorf("%s: %v", name, err)
	}
	var errObj object.Object = object.Nil
	if err != nil {
		errObj = object.NewString(err.Error())
	}
	return object.NewMap(map[string]object.Object{
		"paths": stringList(paths),
		"error": errObj,
	})
}

func toID(obj object.Object) (shadow.ID, error) {
	str, err := toString(obj)
	if err != nil {
		return "", err
	}
	return shadow.ParseID(str)
}

func hunksToList(hunks []shadow.Hunk) object.Object {
	results := make([]object.Object, 0, len(hunks))
	for _, h := range hunks {
		results = append(results, object.NewMap(map[string]object.Object{
			"id":             object.NewInt(int64(h.ID)),
			"file":           object.NewString(h.File),
			"old_start":      object.NewInt(int64(h.OldStart)),
			"old_lines":      object.NewInt(int64(h.OldLines)),
			"new_start":      object.NewInt(int64(h.NewStart)),
			"new_lines":      object.NewInt(int64(h.NewLines)),
			"header":         object.NewString(h.Header),
			"content":        object.NewString(h.Content),
			"symbol":         object.NewString(h.Symbol),
			"pure_deletion":  object.NewBool(h.IsPureDeletion()),
			"deletion_ratio": object.NewFloat(h.DeletionRatio()),
		}))
	}
	return object.NewList(results)
}
