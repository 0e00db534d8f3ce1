// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultDir is where artifacts are written unless configured otherwise.
const DefaultDir = "./backups"

// Files stores artifacts in a directory.
type Files struct {
	Dir         string
	Compression Compression

	now func() time.Time
}

// NewFiles returns a Files rooted at dir (DefaultDir when empty).
func NewFiles(dir string, c Compression) *Files {
	if dir == "" {
		dir = DefaultDir
	}
	if c == "" {
		c = CompressionGzip
	}
	return &Files{Dir: dir, Compression: c, now: time.Now}
}

// DefaultFilename returns backup_<YYYY-MM-DD>_<HH-mm-ss>.json plus the
// compression suffix.
func DefaultFilename(t time.Time, c Compression) string {
	return "backup_" + t.Format("2006-01-02_15-04-05") + ".json" + c.Ext()
}

// Save encodes art into the backup directory and returns the file path. A
// custom filename is reduced to its base name and gets the compression
// suffix when it lacks one.
func (f *Files) Save(art *Artifact, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename(f.now(), f.Compression)
	} else {
		filename = filepath.Base(filename)
		if filename == "." || filename == ".." || filename == string(filepath.Separator) {
			return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
		}
		if ext := f.Compression.Ext(); ext != "" && !strings.HasSuffix(filename, ext) {
			filename += ext
		}
	}

	b, err := Encode(art, f.Compression)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(f.Dir, filename)
	tmp, err := os.CreateTemp(f.Dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("move backup into place: %w", err)
	}
	return path, nil
}

// Load reads and decodes an artifact file. The suffix tells whether the
// content must be compressed.
func (f *Files) Load(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return decodeExpecting(b, compressionForName(path))
}

// List returns the artifact files in the directory, newest first. A missing
// directory yields an empty list.
func (f *Files) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}
	out := []FileInfo{}
	for _, e := range entries {
		if e.IsDir() || !isArtifactName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Filename:  e.Name(),
			Path:      filepath.Join(f.Dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Filename > out[j].Filename
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Prune deletes all but the newest keep artifact files and returns the
// removed paths. keep <= 0 disables pruning.
func (f *Files) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	files, err := f.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, fi := range files[min(keep, len(files)):] {
		if err := os.Remove(fi.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", fi.Filename, err)
		}
		removed = append(removed, fi.Path)
	}
	return removed, nil
}

func isArtifactName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, suffix := range []string{".json", ".json.gz", ".json.zst", ".gz", ".zst"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
