package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

// Artifact file suffixes.
const (
	AnnotatedSuffix = "_detected.jpg"
	MaskSuffix      = "_mask.png"
)

// Artifacts holds the paths of a persisted result.
type Artifacts struct {
	Annotated string `json:"annotated_path"`
	Mask      string `json:"mask_path"`
}

// ArtifactWriter persists pipeline results under Dir.
type ArtifactWriter struct {
	Dir string
}

// Base returns the artifact base name for a source path: the file name
// without directory or extension.
func Base(source string) string {
	name := filepath.Base(source)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Paths returns the artifact paths for base without touching the disk.
func (w ArtifactWriter) Paths(base string) Artifacts {
	return Artifacts{
		Annotated: filepath.Join(w.Dir, base+AnnotatedSuffix),
		Mask:      filepath.Join(w.Dir, base+MaskSuffix),
	}
}

// maxClaimAttempts bounds the numeric suffixes tried for one base name.
const maxClaimAttempts = 1000

// Write saves res under the base name of its source. Either both files are
// written or neither is left behind.
func (w ArtifactWriter) Write(res *Result) (Artifacts, error) {
	if res.Source == "" {
		return Artifacts{}, errors.New("artifact writer: result has no source path")
	}
	return w.WriteAs(Base(res.Source), res)
}

// WriteAs saves res as <base>_detected.jpg and <base>_mask.png. Existing
// artifacts are never replaced: when either name is taken the base gets a
// numeric suffix (<base>_2, <base>_3, ...) and the returned paths say which
// names were used.
func (w ArtifactWriter) WriteAs(base string, res *Result) (Artifacts, error) {
	if base == "" || base == "." {
		return Artifacts{}, errors.New("artifact writer: empty base name")
	}
	if res == nil || res.Annotated == nil || res.Mask == nil {
		return Artifacts{}, errors.New("artifact writer: incomplete result")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("artifact writer: %w", err)
	}

	paths, files, err := w.claim(base)
	if err != nil {
		return Artifacts{}, err
	}
	// Close on an already closed file only reports an error.
	discard := func() {
		for _, f := range files {
			f.Close()
		}
		os.Remove(paths.Annotated)
		os.Remove(paths.Mask)
	}

	if err := imaging.Encode(files[0], res.Annotated, paths.Annotated); err != nil {
		discard()
		return Artifacts{}, fmt.Errorf("write annotated image: %w", err)
	}
	if err := imaging.Encode(files[1], res.Mask, paths.Mask); err != nil {
		discard()
		return Artifacts{}, fmt.Errorf("write mask image: %w", err)
	}
	for _, f := range files {
		if err := f.Close(); err != nil {
			discard()
			return Artifacts{}, fmt.Errorf("artifact writer: %w", err)
		}
	}
	return paths, nil
}

// claim creates both artifact files exclusively, trying base, base_2,
// base_3 ... until a free pair is found.
func (w ArtifactWriter) claim(base string) (Artifacts, []*os.File, error) {
	for n := 1; n <= maxClaimAttempts; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		paths := w.Paths(name)

		annotated, err := createExclusive(paths.Annotated)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Artifacts{}, nil, fmt.Errorf("artifact writer: %w", err)
		}
		mask, err := createExclusive(paths.Mask)
		if err != nil {
			annotated.Close()
			os.Remove(paths.Annotated)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return Artifacts{}, nil, fmt.Errorf("artifact writer: %w", err)
		}
		return paths, []*os.File{annotated, mask}, nil
	}
	return Artifacts{}, nil, fmt.Errorf("artifact writer: no free name for %q", base)
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// WriteComparison saves both sides of a comparison. When the two sources
// share a base name the artifacts are suffixed _1 and _2. On failure any
// file already written is removed.
func (w ArtifactWriter) WriteComparison(cmp *Comparison) ([2]Artifacts, error) {
	var out [2]Artifacts
	if cmp.First.Source == "" || cmp.Second.Source == "" {
		return out, errors.New("artifact writer: comparison results have no source paths")
	}
	b1, b2 := Base(cmp.First.Source), Base(cmp.Second.Source)
	if b1 == b2 {
		b1, b2 = b1+"_1", b2+"_2"
	}

	a1, err := w.WriteAs(b1, cmp.First)
	if err != nil {
		return out, &ComparisonError{Side: 1, Err: err}
	}
	a2, err := w.WriteAs(b2, cmp.Second)
	if err != nil {
		os.Remove(a1.Annotated)
		os.Remove(a1.Mask)
		return out, &ComparisonError{Side: 2, Err: err}
	}
	out[0], out[1] = a1, a2
	return out, nil
}
