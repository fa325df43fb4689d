package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager prepares destinations for the files a run writes. Every
// write replaces the previous file wholesale.
type OutputManager struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

// NewOutputManager creates a new output manager
func NewOutputManager() *OutputManager {
	return &OutputManager{
		DirPerm:  0755,
		FilePerm: 0644,
	}
}

// EnsureParentDir creates the directory that will hold path.
func (om *OutputManager) EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, om.DirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Create opens path for writing, truncating any previous content and
// creating parent directories.
func (om *OutputManager) Create(path string) (*os.File, error) {
	if err := om.EnsureParentDir(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, om.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// Artifact describes a file a run has written.
type Artifact struct {
	Path  string
	Kind  string
	Bytes int64
}

// artifactKinds maps output extensions to the kind reported in logs.
var artifactKinds = map[string]string{
	".csv":  "csv",
	".xlsx": "xlsx",
	".png":  "png",
	".prom": "metrics",
}

// Describe stats a written file.
func (om *OutputManager) Describe(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	kind, ok := artifactKinds[strings.ToLower(filepath.Ext(path))]
	if !ok {
		kind = "other"
	}
	return Artifact{Path: path, Kind: kind, Bytes: info.Size()}, nil
}
