// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package upload relocates staged file uploads to their final location when a
gated Create or Update operation completes its pre-operation checks.

The gate only talks to the [Relocator] capability: it hands over the upload
declarations (with directory sentinels already resolved) and the composed
document, and receives final URLs per field. The shipped implementation
moves files on the local filesystem; an object-storage implementation can
replace it without touching the chain.
*/
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/taibuivan/torii/pkg/slug"
)

// Declaration is one upload field with its fully resolved relocation target.
type Declaration struct {
	// Field is the document key carrying the staged file reference.
	Field string

	// AccessPolicy names the visibility applied to the relocated file.
	AccessPolicy string

	// Directory is the resolved target directory (sentinels already
	// substituted by the chain).
	Directory string
}

// Relocator moves staged files to their final location.
type Relocator interface {
	// Relocate processes every declaration whose field carries a staged
	// file reference in data and returns the final URL per field.
	Relocate(ctx context.Context, declarations []Declaration, data map[string]any) (map[string]string, error)
}

// LocalRelocator implements [Relocator] on the local filesystem.
//
// Staged files are expected as absolute paths inside the staging root;
// relocated files live under the storage root, addressed by the declared
// directory, and are exposed under the configured base URL.
type LocalRelocator struct {
	root    string
	baseURL string
}

// NewLocalRelocator creates a filesystem-backed [Relocator].
//
// # Parameters
//   - root: Directory under which relocated files are stored.
//   - baseURL: Public URL prefix for relocated files (no trailing slash).
func NewLocalRelocator(root, baseURL string) *LocalRelocator {
	return &LocalRelocator{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

/*
Relocate moves each declared staged file into its target directory.

Description: Fields absent from data, or not carrying a string path, are
skipped silently; the chain only declares fields it has actually observed.
Directory segments are slug-sanitized so sentinel-derived identities cannot
escape the storage root.

Parameters:
  - context: context.Context
  - declarations: []Declaration (resolved targets)
  - data: map[string]any (composed document carrying staged paths)

Returns:
  - map[string]string: Final URL per relocated field
  - error: Filesystem failures
*/
func (relocator *LocalRelocator) Relocate(context context.Context, declarations []Declaration, data map[string]any) (map[string]string, error) {
	located := make(map[string]string, len(declarations))

	for _, declaration := range declarations {
		staged, ok := data[declaration.Field].(string)
		if !ok || staged == "" {
			continue
		}

		targetDir := filepath.Join(relocator.root, sanitizeDirectory(declaration.Directory))
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return nil, fmt.Errorf("upload: failed to create %s: %w", targetDir, err)
		}

		fileName := filepath.Base(staged)
		targetPath := filepath.Join(targetDir, fileName)

		if err := moveFile(staged, targetPath); err != nil {
			return nil, fmt.Errorf("upload: failed to relocate %s: %w", declaration.Field, err)
		}

		located[declaration.Field] = relocator.baseURL + "/" +
			strings.TrimPrefix(filepath.ToSlash(filepath.Join(sanitizeDirectory(declaration.Directory), fileName)), "/")
	}

	return located, nil
}

// sanitizeDirectory slugs each directory segment independently, preserving
// the path structure while neutralizing traversal and unsafe characters.
func sanitizeDirectory(directory string) string {
	segments := strings.Split(directory, "/")
	cleaned := segments[:0]
	for _, segment := range segments {
		sanitized := slug.From(segment)
		if sanitized == "" {
			continue
		}
		cleaned = append(cleaned, sanitized)
	}
	return strings.Join(cleaned, "/")
}

// moveFile renames when possible and falls back to copy-and-remove for
// cross-device staging directories.
func moveFile(source, target string) error {
	if err := os.Rename(source, target); err == nil {
		return nil
	}

	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(target)
	if err != nil {
		return err
	}
	defer output.Close()

	if _, err := io.Copy(output, input); err != nil {
		return err
	}
	return os.Remove(source)
}
