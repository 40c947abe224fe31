package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrAlreadyInstalled = errors.New("service already installed")
	ErrServiceRunning   = errors.New("service is running")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DefaultExcludes are never copied into an installation.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/.git",
	"**/.DS_Store",
	"**/__pycache__/**",
	"**/*.pyc",
	"**/node_modules/**",
	"hivekeeper.pid*",
}

/**
 * Installation of one service
 * @property {*manifest.Manifest} Manifest - Manifest read from disk
 * @property {string} Path - <home>/<name>
 * @property {string} ManifestFile - Manifest file name inside Path
 * @property {time.Time} InstalledAt - Modification time of the manifest
 */
type Installation struct {
	Manifest     *manifest.Manifest
	Path         string
	ManifestFile string
	InstalledAt  time.Time
}

func (i *Installation) Name() string {
	return i.Manifest.Name
}

// RunningChecker tells the store whether a service currently runs.
type RunningChecker interface {
	IsRunning(name string) (bool, error)
}

// Store is the flat installation directory. Every read goes to disk.
type Store struct {
	Home     string
	Excludes []string
}

func New(home string) *Store {
	return &Store{Home: home, Excludes: DefaultExcludes}
}

// Dir returns the directory a service is installed in.
func (s *Store) Dir(name string) string {
	return filepath.Join(s.Home, name)
}

func checkName(name string) error {
	if !namePattern.MatchString(name) {
		return apperr.NewValidation("name", "invalid service name '%s'", name)
	}
	return nil
}

/**
 * Install a package
 * @param {*manifest.Manifest} m - Parsed manifest of the package
 * @param {fs.FS} files - Package contents, manifest at the root
 * @returns {(*Installation, error)} New installation
 * @description
 * - Files are copied to a staging directory first and renamed into place,
 *   a failed copy never leaves a half installed service
 * - An existing installation of the same name is a ConflictError
 */
func (s *Store) Install(m *manifest.Manifest, files fs.FS) (*Installation, error) {
	if err := checkName(m.Name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Home, 0755); err != nil {
		return nil, fmt.Errorf("create home %s: %w", s.Home, err)
	}
	dst := s.Dir(m.Name)
	if _, err := os.Stat(dst); err == nil {
		return nil, &apperr.ConflictError{
			Message: fmt.Sprintf("cannot install '%s'", m.Name),
			Cause:   ErrAlreadyInstalled,
		}
	}

	staging, err := os.MkdirTemp(s.Home, "."+m.Name+".install-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := s.copyFS(files, staging); err != nil {
		return nil, fmt.Errorf("copy package %s: %w", m.Name, err)
	}
	if err := os.Chmod(staging, 0755); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			return nil, &apperr.ConflictError{Message: fmt.Sprintf("cannot install '%s'", m.Name), Cause: ErrAlreadyInstalled}
		}
		return nil, fmt.Errorf("move %s into place: %w", m.Name, err)
	}
	logger.Infof("installed service '%s' into %s", m.Name, dst)
	return s.Get(m.Name)
}

func (s *Store) excluded(p string) bool {
	for _, pattern := range s.Excludes {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func (s *Store) copyFS(src fs.FS, dst string) error {
	return fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if s.excluded(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, filepath.FromSlash(p))
		if !isWithin(dst, target) {
			return fmt.Errorf("path %s escapes the package", p)
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			logger.Debugf("skipping non-regular file %s", p)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(src, p, target, info.Mode().Perm()|0600)
	})
}

func copyFile(src fs.FS, p, target string, mode fs.FileMode) error {
	in, err := src.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

/**
 * Remove an installation
 * @param {string} name - Service name
 * @param {RunningChecker} running - Consulted before removal, may be nil
 * @returns {error} NotFoundError, ConflictError while running, or I/O error
 * @description
 * - A stale runtime record (process gone) doesn't block removal, it is
 *   deleted together with the directory
 */
func (s *Store) Uninstall(name string, running RunningChecker) error {
	inst, err := s.Get(name)
	if err != nil {
		return err
	}
	if running != nil {
		up, err := running.IsRunning(name)
		if err != nil {
			return fmt.Errorf("check %s status: %w", name, err)
		}
		if up {
			return &apperr.ConflictError{
				Message: fmt.Sprintf("cannot uninstall '%s', stop it first", name),
				Cause:   ErrServiceRunning,
			}
		}
	}
	// 先改名再删除，删除中途失败也不会留下看似完整的安装
	trash := filepath.Join(s.Home, "."+name+".remove-"+fmt.Sprint(time.Now().UnixNano()))
	if err := os.Rename(inst.Path, trash); err != nil {
		return fmt.Errorf("uninstall %s: %w", name, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("remove %s: %w", trash, err)
	}
	logger.Infof("uninstalled service '%s'", name)
	return nil
}

// Get loads an installation from disk.
func (s *Store) Get(name string) (*Installation, error) {
	// 非法名字不可能被安装过
	if !namePattern.MatchString(name) {
		return nil, apperr.NewNotFound("service", name)
	}
	dir := s.Dir(name)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, apperr.NewNotFound("service", name)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	m, file, err := manifest.Load(os.DirFS(dir))
	if errors.Is(err, manifest.ErrNoManifest) {
		return nil, apperr.NewNotFound("service", name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if m.Name != name {
		return nil, fmt.Errorf("manifest in %s names service '%s'", dir, m.Name)
	}
	inst := &Installation{Manifest: m, Path: dir, ManifestFile: file}
	if fi, err := os.Stat(filepath.Join(dir, file)); err == nil {
		inst.InstalledAt = fi.ModTime()
	}
	return inst, nil
}

// List returns every installation sorted by name. Broken entries are skipped.
func (s *Store) List() ([]*Installation, error) {
	entries, err := os.ReadDir(s.Home)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read home %s: %w", s.Home, err)
	}
	var out []*Installation
	for _, e := range entries {
		if !e.IsDir() || !namePattern.MatchString(e.Name()) {
			continue
		}
		inst, err := s.Get(e.Name())
		if err != nil {
			logger.Debugf("skipping %s: %v", path.Join(s.Home, e.Name()), err)
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}
