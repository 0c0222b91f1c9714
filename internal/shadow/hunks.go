package shadow

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jward/moss/internal/fsutil"
	"github.com/jward/moss/internal/unidiff"
)

// Hunk is one contiguous block of changed lines in one file. IDs are
// sequential within a single diff call, starting at 1.
type Hunk struct {
	ID       int
	File     string
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Header   string
	Content  string
	// Symbol is the qualified name of the declaration enclosing the first
	// changed line, when a SymbolLocator is configured.
	Symbol string
}

// IsPureDeletion reports whether the hunk only removes lines.
func (h Hunk) IsPureDeletion() bool {
	return h.OldLines > 0 && h.NewLines == 0
}

// DeletionRatio scores how deletion-heavy the hunk is: old/new lines, or the
// old line count when nothing was added.
func (h Hunk) DeletionRatio() float64 {
	if h.NewLines == 0 {
		return float64(h.OldLines)
	}
	return float64(h.OldLines) / float64(h.NewLines)
}

// Hunks diffs the head snapshot against the current disk content.
func (s *Store) Hunks() ([]Hunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.headHash()
	if err != nil {
		return nil, err
	}
	return s.hunksSince(h)
}

// HunksSince diffs the snapshot id against the current on-disk content of
// every path tracked by id or by the head snapshot. Hunks come back in file
// order, then position order. Binary files produce no hunks.
func (s *Store) HunksSince(id ID) ([]Hunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hunksSince(id.hash())
}

func (s *Store) hunksSince(from plumbing.Hash) ([]Hunk, error) {
	_, oldTree, err := s.commitTree(from)
	if err != nil {
		return nil, err
	}
	oldEntries, err := flatten(oldTree)
	if err != nil {
		return nil, err
	}

	head, err := s.headHash()
	if err != nil {
		return nil, err
	}
	_, headTree, err := s.commitTree(head)
	if err != nil {
		return nil, err
	}
	headEntries, err := flatten(headTree)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(oldEntries)+len(headEntries))
	for p := range oldEntries {
		paths = append(paths, p)
	}
	for p := range headEntries {
		if _, ok := oldEntries[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var hunks []Hunk
	for _, p := range paths {
		newData, onDisk, err := s.readWorking(p)
		if err != nil {
			return nil, err
		}
		old, inOld := oldEntries[p]
		if !inOld && !onDisk {
			continue
		}
		if inOld && onDisk && plumbing.ComputeHash(plumbing.BlobObject, newData) == old.hash {
			continue
		}

		var oldData []byte
		if inOld {
			if oldData, err = s.readBlob(old.hash); err != nil {
				return nil, err
			}
		}
		if fsutil.IsBinary(oldData) || fsutil.IsBinary(newData) {
			continue
		}

		for _, uh := range unidiff.Compute(unidiff.SplitLines(string(oldData)), unidiff.SplitLines(string(newData)), s.contextLines) {
			h := Hunk{
				ID:       len(hunks) + 1,
				File:     p,
				OldStart: uh.OldStart,
				OldLines: uh.OldLines,
				NewStart: uh.NewStart,
				NewLines: uh.NewLines,
				Header:   uh.Header,
				Content:  uh.Content(),
			}
			h.Symbol = s.symbolFor(p, uh, oldData, newData)
			hunks = append(hunks, h)
		}
	}
	return hunks, nil
}

// readWorking returns the on-disk bytes at rel. A missing file or a
// directory reports onDisk=false.
func (s *Store) readWorking(rel string) (data []byte, onDisk bool, err error) {
	data, err = os.ReadFile(s.abs(rel))
	if err == nil {
		return data, true, nil
	}
	if fsutil.IsNotExist(err) {
		return nil, false, nil
	}
	if info, statErr := os.Stat(s.abs(rel)); statErr == nil && info.IsDir() {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("shadow: read %s: %w", rel, err)
}

// symbolFor locates the declaration around the hunk's first changed line,
// reading the old side when the hunk starts with a removal.
func (s *Store) symbolFor(path string, h unidiff.Hunk, oldData, newData []byte) string {
	if s.symbols == nil {
		return ""
	}
	for _, l := range h.Lines {
		switch {
		case strings.HasPrefix(l, "-"):
			return s.symbols.EnclosingSymbol(path, oldData, h.FirstOld)
		case strings.HasPrefix(l, "+"):
			return s.symbols.EnclosingSymbol(path, newData, h.FirstNew)
		}
	}
	return ""
}
