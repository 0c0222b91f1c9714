package shadow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jward/moss/internal/fsutil"
)

// Restore writes content from snapshot id back to disk and returns the paths
// it wrote, in order.
//
// With a nil files slice every blob in the snapshot's tree is written,
// creating parent directories as needed. Otherwise only the named paths are
// written; a path the snapshot does not record is skipped. Restore never
// deletes files. The first write failure aborts the rest; files already
// written stay written.
func (s *Store) Restore(id ID, files []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, tree, err := s.commitTree(id.hash())
	if err != nil {
		return nil, err
	}

	var restored []string
	if files == nil {
		entries, err := flatten(tree)
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(entries))
		for p := range entries {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if err := s.writeOut(p, entries[p]); err != nil {
				return restored, err
			}
			restored = append(restored, p)
		}
	} else {
		for _, f := range files {
			rel, err := fsutil.RelTo(s.root, f)
			if err != nil {
				return restored, fmt.Errorf("shadow: restore: %w", err)
			}
			file, err := tree.File(rel)
			if errors.Is(err, object.ErrFileNotFound) {
				continue
			}
			if err != nil {
				return restored, fmt.Errorf("shadow: restore %s: %w", rel, err)
			}
			if err := s.writeOut(rel, fileEntry{hash: file.Hash, mode: file.Mode}); err != nil {
				return restored, err
			}
			restored = append(restored, rel)
		}
	}

	s.logger.Debug("shadow restore",
		slog.String("id", string(id)),
		slog.Int("files", len(restored)),
	)
	return restored, nil
}

func (s *Store) writeOut(rel string, e fileEntry) error {
	data, err := s.readBlob(e.hash)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.abs(rel), data, osPerm(e.mode)); err != nil {
		return fmt.Errorf("shadow: restore %s: %w", rel, err)
	}
	return nil
}
