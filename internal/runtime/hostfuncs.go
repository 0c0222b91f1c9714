package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/moss/internal/structure"
)

var locator = structure.NewLocator()

// makeLanguageForFn creates the "language_for" host function.
//
// language_for(path) → string, or nil for unsupported extensions
func makeLanguageForFn() *object.Builtin {
	return object.NewBuiltin("language_for", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("language_for", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("language_for: path: %v", err)
		}
		lang, ok := structure.LanguageForFile(path)
		if !ok {
			return object.Nil
		}
		return object.NewString(lang)
	})
}

// makeSymbolAtFn creates the "symbol_at" host function.
//
// symbol_at(path, source, line) → string
//
// Returns the qualified name of the declaration enclosing the 1-based line,
// or "" when there is none. path only selects the grammar.
func makeSymbolAtFn() *object.Builtin {
	return object.NewBuiltin("symbol_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("symbol_at", 3, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbol_at: path: %v", err)
		}
		src, err := toString(args[1])
		if err != nil {
			return object.Errorf("symbol_at: source: %v", err)
		}
		line, err := toInt64(args[2])
		if err != nil {
			return object.Errorf("symbol_at: line: %v", err)
		}
		return object.NewString(locator.EnclosingSymbol(path, []byte(src), int(line)))
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

// --- Argument conversion helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// toStringList converts a Risor list of strings. A Risor nil yields a nil
// slice; a single string yields a one-element slice.
func toStringList(obj object.Object) ([]string, error) {
	switch v := obj.(type) {
	case *object.NilType:
		return nil, nil
	case *object.String:
		return []string{v.Value()}, nil
	case *object.List:
		items := v.Value()
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %s", obj.Type())
	}
}

func stringList(items []string) object.Object {
	objs := make([]object.Object, 0, len(items))
	for _, s := range items {
		objs = append(objs, object.NewString(s))
	}
	return object.NewList(objs)
}
