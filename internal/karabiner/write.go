package karabiner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AssetsDir is where the host engine looks for importable documents,
// relative to the home directory.
const AssetsDir = ".config/karabiner/assets/complex_modifications"

// DefaultDir returns the host engine's complex modification directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("karabiner: locate home directory: %w", err)
	}
	return filepath.Join(home, AssetsDir), nil
}

// Path returns the document path for a layout in dir.
func Path(dir, layout string) string {
	return filepath.Join(dir, layout+".json")
}

// Encode serializes doc with two-space indentation and no HTML escaping.
// The encoding is deterministic: struct fields in declaration order and
// parameter maps sorted by key.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("karabiner: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("karabiner: decode: %w", err)
	}
	return &doc, nil
}

// WriteAtomic writes data to path through a temp file in the same
// directory and a rename, so readers see the old document or the new one
// and a failed write leaves the old one in place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("karabiner: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("karabiner: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("karabiner: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("karabiner: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("karabiner: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("karabiner: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("karabiner: rename to %s: %w", path, err)
	}
	return nil
}
