package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

/**
 * Package acquired from a source
 * @property {string} Origin - Reference it was acquired from
 * @property {string} ManifestFile - Manifest file name inside the package
 * @property {[]byte} ManifestData - Raw manifest bytes
 * @property {*manifest.Manifest} Manifest - Parsed manifest
 * @property {fs.FS} Files - Package contents rooted at the manifest directory
 */
type Package struct {
	Origin       string
	ManifestFile string
	ManifestData []byte
	Manifest     *manifest.Manifest
	Files        fs.FS
	cleanup      []func() error
}

// Close releases archive handles and temporary downloads.
func (p *Package) Close() error {
	var errs []error
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		if err := p.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.cleanup = nil
	return errors.Join(errs...)
}

// Resolver turns an install reference into a package.
type Resolver struct {
	Catalog *Catalog
}

func NewResolver(catalogURL string) *Resolver {
	return &Resolver{Catalog: NewCatalog(catalogURL)}
}

/**
 * Acquire a package
 * @param {context.Context} ctx - Cancels remote downloads
 * @param {string} ref - Local directory, local .zip archive or catalog name
 * @returns {(*Package, error)} Package, caller must Close it
 * @description
 * - Existing paths win over catalog names
 * - A bare name that isn't a path is looked up in the remote catalog
 */
func (r *Resolver) Acquire(ctx context.Context, ref string) (*Package, error) {
	info, err := os.Stat(ref)
	switch {
	case err == nil && info.IsDir():
		logger.Debugf("acquiring package from directory %s", ref)
		return load(ref, os.DirFS(ref), nil)
	case err == nil && strings.EqualFold(filepath.Ext(ref), ".zip"):
		logger.Debugf("acquiring package from archive %s", ref)
		return openZip(ref, ref, nil)
	case err == nil:
		return nil, apperr.NewValidation("source", "'%s' is neither a directory nor a zip archive", ref)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}

	if !namePattern.MatchString(ref) || r.Catalog == nil {
		return nil, apperr.NewNotFound("package", ref)
	}
	logger.Debugf("acquiring package %s from catalog %s", ref, r.Catalog.URL)
	archive, err := r.Catalog.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	return openZip(ref, archive, func() error { return os.Remove(archive) })
}

func openZip(origin, path string, cleanup func() error) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, apperr.NewValidation("source", "cannot open archive %s: %v", origin, err)
	}
	closers := []func() error{}
	if cleanup != nil {
		closers = append(closers, cleanup)
	}
	closers = append(closers, zr.Close)
	root, err := packageRoot(zr)
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}
	return load(origin, root, closers)
}

// packageRoot accepts archives with the manifest at the top or inside a single directory.
func packageRoot(fsys fs.FS) (fs.FS, error) {
	if _, _, err := manifest.Find(fsys); err == nil {
		return fsys, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "__MACOSX") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 {
		return fsys, nil
	}
	return fs.Sub(fsys, dirs[0])
}

func load(origin string, fsys fs.FS, closers []func() error) (*Package, error) {
	pkg := &Package{Origin: origin, Files: fsys, cleanup: closers}
	name, data, err := manifest.Find(fsys)
	if err != nil {
		pkg.Close()
		if errors.Is(err, manifest.ErrNoManifest) {
			return nil, apperr.NewValidation("source", "no service manifest in '%s' (expected one of %s)",
				origin, strings.Join(manifest.FileNames, ", "))
		}
		return nil, err
	}
	m, err := manifest.Parse(data, name)
	if err != nil {
		pkg.Close()
		return nil, err
	}
	pkg.ManifestFile = name
	pkg.ManifestData = data
	pkg.Manifest = m
	return pkg, nil
}
