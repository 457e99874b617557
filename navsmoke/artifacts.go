package navsmoke

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ArtifactStore writes run artifacts below a per-run directory.
type ArtifactStore struct {
	Root string
}

func NewArtifactStore(baseDir, runID string) (*ArtifactStore, error) {
	if baseDir == "" {
		return nil, errors.New("artifact directory required")
	}
	root := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &ArtifactStore{Root: root}, nil
}

func (s *ArtifactStore) resolvePath(name string) (string, error) {
	if name == "" {
		return "", errors.New("file name required")
	}
	if filepath.IsAbs(name) {
		return "", errors.New("absolute paths not allowed")
	}
	clean := filepath.Clean(name)
	if strings.HasPrefix(clean, "..") {
		return "", errors.New("path traversal not allowed")
	}
	return filepath.Join(s.Root, clean), nil
}

// WriteFile stores data under name and returns the full path.
func (s *ArtifactStore) WriteFile(name string, data []byte) (string, error) {
	path, err := s.resolvePath(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// caseFileName names an artifact after the case position and label.
func caseFileName(index int, label, ext string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "case"
	}
	return fmt.Sprintf("%02d-%s%s", index+1, slug, ext)
}
