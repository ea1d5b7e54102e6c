package util

import (
	"context"
	"io/fs"
	"net/url"
	"path/filepath"
)

// ToRelativePath returns fullPath relative to rootPath, or fullPath if that fails
func ToRelativePath(rootPath, fullPath string) string {
	relPath, err := filepath.Rel(rootPath, fullPath)
	if err != nil {
		return fullPath
	}
	return relPath
}

// ExtractPathFromURI turns a file:// URI into a filesystem path; other input is returned as is
func ExtractPathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}

// SkipFunc reports whether a directory should not be descended into
type SkipFunc func(path string, name string) bool

// DefaultSkipDirs are build outputs, dependency caches and VCS metadata
var DefaultSkipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, "node_modules": true, ".vscode": true,
	".idea": true, "vendor": true, "target": true, "build": true, "dist": true,
	"out": true, "__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
	"coverage": true, "site-packages": true, ".next": true, ".nuxt": true,
	"venv": true, ".venv": true, "env": true, ".tox": true, ".gradle": true,
}

// SkipDefaultDirs is a SkipFunc over DefaultSkipDirs
func SkipDefaultDirs(_ string, name string) bool {
	return DefaultSkipDirs[name]
}

// WalkFiles calls fn for every regular file under root in lexical order, skipping
// directories for which skip returns true. The context is checked before each file;
// when it is done the walk stops and returns the context's error.
func WalkFiles(ctx context.Context, root string, skip SkipFunc, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skip != nil && skip(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}
