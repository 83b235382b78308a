package livereload

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/yookoala/realpath"
	"golang.org/x/tools/go/packages"
)

const packagePatternPrefix = "pkg:"

type goPackage struct {
	dirs  []string
	stale bool
}

// expander turns watch patterns into concrete files. It is used only from the watcher loop.
type expander struct {
	packages map[string]*goPackage
	// Replaced in tests.
	loadPackage func(path string) ([]string, error)
}

func newExpander() *expander {
	return &expander{
		packages:    make(map[string]*goPackage),
		loadPackage: loadPackageDirs,
	}
}

// expand lists regular files currently matched by entry. A pattern matching nothing is not an error.
func (x *expander) expand(entry *WatchEntry) ([]string, error) {
	var (
		files []string
		err   error
	)

	switch pattern := entry.Pattern; {
	case strings.HasPrefix(pattern, packagePatternPrefix):
		files, err = x.expandPackage(strings.TrimPrefix(pattern, packagePatternPrefix))
	case hasMeta(pattern):
		files, err = expandGlob(pattern)
	default:
		files, err = expandPath(pattern)
	}
	if err != nil {
		return nil, err
	}

	if len(entry.Ignore) == 0 {
		return files, nil
	}
	filtered := files[:0]
	for _, file := range files {
		if !ignored(entry.Ignore, file) {
			filtered = append(filtered, file)
		}
	}
	return filtered, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func ignored(patterns []string, path string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

func expandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob [%s] failed", pattern)
	}
	files := matches[:0]
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, filepath.Clean(match))
	}
	return files, nil
}

func expandPath(path string) ([]string, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "could not stat [%s]", path)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			// vanished while walking
			return nil
		}
		if p != path && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk of [%s] failed", path)
	}
	return files, nil
}

func (x *expander) expandPackage(importPath string) ([]string, error) {
	pkg := x.packages[importPath]
	if pkg == nil || pkg.stale {
		dirs, err := x.loadPackage(importPath)
		if err != nil {
			return nil, err
		}
		pkg = &goPackage{dirs: dirs}
		x.packages[importPath] = pkg
	}

	var files []string
	for _, dir := range pkg.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".go" && !hidden(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	return files, nil
}

// invalidate marks Go packages containing path for reload, since its imports may have changed.
func (x *expander) invalidate(path string) {
	if filepath.Ext(path) != ".go" {
		return
	}
	dir := filepath.Dir(path)
	for _, pkg := range x.packages {
		for _, d := range pkg.dirs {
			if d == dir {
				pkg.stale = true
				break
			}
		}
	}
}

// loadPackageDirs returns directories of the package and of every package it transitively imports from the
// main module or from replaced modules.
func loadPackageDirs(path string) ([]string, error) {
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps | packages.NeedModule,
	}, path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading package [%s] failed", path)
	} else if len(pkgs) != 1 {
		return nil, errors.Errorf("loading package [%s] failed: got %d packages", path, len(pkgs))
	}

	root := pkgs[0]
	processed := map[string]bool{root.ID: true, "C": true, "unsafe": true}
	dirs := make(map[string]bool)
	queue := []*packages.Package{root}

	for ; len(queue) > 0; queue = queue[1:] {
		pkg := queue[0]
		pkgDir := getPackageDir(pkg)
		if pkgDir == "" {
			if pkg == root {
				return nil, errors.Errorf("could not determine package directory of [%s]", pkg.ID)
			}
			continue
		}
		if pkg != root && !local(pkg) {
			continue
		}
		if resolved, err := realpath.Realpath(pkgDir); err == nil {
			pkgDir = resolved
		}
		dirs[pkgDir] = true

		for _, imported := range pkg.Imports {
			if processed[imported.ID] {
				continue
			}
			processed[imported.ID] = true
			queue = append(queue, imported)
		}
	}

	result := make([]string, 0, len(dirs))
	for dir := range dirs {
		result = append(result, dir)
	}
	sort.Strings(result)
	return result, nil
}

func local(pkg *packages.Package) bool {
	return pkg.Module != nil && (pkg.Module.Main || pkg.Module.Replace != nil)
}

func getPackageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}

	if len(pkg.OtherFiles) > 0 {
		return filepath.Dir(pkg.OtherFiles[0])
	}

	return ""
}
