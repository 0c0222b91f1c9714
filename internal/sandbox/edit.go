package sandbox

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/moss/internal/fsutil"
)

// Edit writes content to path inside the sandbox, creating parent
// directories, and adds path to the modified set. Repeated edits of the same
// path keep its original position in the set.
func (s *Sandbox) Edit(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.resolve(path)
	if err != nil {
		return ioErrorf("edit: %v", err)
	}
	full := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ioErrorf("edit %s: %v", rel, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return ioErrorf("edit %s: %v", rel, err)
	}

	if !s.isModified(rel) {
		s.modified = append(s.modified, rel)
	}
	s.logger.Debug("sandbox edit", slog.String("path", rel), slog.Int("bytes", len(content)))
	return s.saveState()
}

// Read returns the sandbox's current content of path, which may differ from
// the real repository's.
func (s *Sandbox) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, err := s.resolve(path)
	if err != nil {
		return nil, ioErrorf("read: %v", err)
	}
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return nil, ioErrorf("read %s: %v", rel, err)
	}
	return data, nil
}

// resolve cleans path and keeps it inside the worktree: git metadata and
// symlinks pointing out of the sandbox are refused.
func (s *Sandbox) resolve(path string) (string, error) {
	rel, err := fsutil.CleanRel(path)
	if err != nil {
		return "", err
	}
	if err := fsutil.CheckInside(s.path, rel); err != nil {
		return "", err
	}
	return rel, nil
}

// Modified returns a copy of the modified set in edit order.
func (s *Sandbox) Modified() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.modified))
	copy(out, s.modified)
	return out
}

func (s *Sandbox) isModified(rel string) bool {
	for _, p := range s.modified {
		if p == rel {
			return true
		}
	}
	return false
}

// Apply copies every modified path from the sandbox onto the real tree and
// returns the paths copied. A modified path whose sandbox file no longer
// exists is skipped. The first I/O failure stops the batch; the returned
// slice is the exact set already written. The modified set is left as is.
func (s *Sandbox) Apply() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []string
	for _, rel := range s.modified {
		src := s.abs(rel)
		info, err := os.Stat(src)
		if fsutil.IsNotExist(err) {
			continue
		}
		if err != nil {
			return applied, ioErrorf("apply %s: %v", rel, err)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return applied, ioErrorf("apply %s: %v", rel, err)
		}
		dst := filepath.Join(s.root, filepath.FromSlash(rel))
		if err := fsutil.WriteFileAtomic(dst, data, info.Mode().Perm()); err != nil {
			return applied, ioErrorf("apply %s: %v", rel, err)
		}
		applied = append(applied, rel)
	}

	s.logger.Debug("sandbox apply", slog.Int("files", len(applied)))
	return applied, nil
}
