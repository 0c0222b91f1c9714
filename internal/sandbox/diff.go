package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jward/moss/internal/fsutil"
	"github.com/jward/moss/internal/unidiff"
)

// FileDiff is the diff of one modified path.
type FileDiff struct {
	Path string
	// Tracked is true when the main repository has the path at HEAD; the
	// patch then comes from git. Untracked paths get a synthesized
	// new-file patch.
	Tracked bool
	Patch   string
}

// Diff returns a patch for each modified path that differs from HEAD, in
// edit order. Files outside the modified set never appear, even when a
// validation run created them. A modified untracked path that no longer
// exists in the sandbox is skipped.
func (s *Sandbox) Diff(ctx context.Context) ([]FileDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var diffs []FileDiff
	for _, rel := range s.modified {
		tracked, err := s.tracked(ctx, rel)
		if err != nil {
			return nil, err
		}
		if tracked {
			out, err := s.git(ctx, s.path, "diff", "--no-color", "--no-ext-diff", "HEAD", "--", rel)
			if err != nil {
				return nil, err
			}
			if out != "" {
				diffs = append(diffs, FileDiff{Path: rel, Tracked: true, Patch: out})
			}
			continue
		}

		data, err := os.ReadFile(s.abs(rel))
		if fsutil.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, ioErrorf("diff %s: %v", rel, err)
		}
		diffs = append(diffs, FileDiff{Path: rel, Patch: newFilePatch(rel, data)})
	}
	return diffs, nil
}

// tracked reports whether HEAD contains rel.
func (s *Sandbox) tracked(ctx context.Context, rel string) (bool, error) {
	out, err := s.git(ctx, s.path, "ls-tree", "--name-only", "HEAD", "--", rel)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func newFilePatch(rel string, data []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", rel, rel)
	b.WriteString("new file mode 100644\n")
	if fsutil.IsBinary(data) {
		fmt.Fprintf(&b, "Binary files /dev/null and b/%s differ\n", rel)
		return b.String()
	}
	b.WriteString(unidiff.Format("", rel, unidiff.NewFile(string(data))))
	return b.String()
}

// JoinPatches concatenates the patches of diffs in order.
func JoinPatches(diffs []FileDiff) string {
	var b strings.Builder
	for _, d := range diffs {
		b.WriteString(d.Patch)
	}
	return b.String()
}
