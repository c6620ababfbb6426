package project

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
)

// MarkerFile marks the root of a magicwand project, it doubles as the settings file
const MarkerFile = ".mw_proj"

// ComponentCategories are the folders holding component configuration documents
var ComponentCategories = []string{"attacks", "benign", "sensors", "suts"}

//go:embed defaults
var defaults embed.FS

// Init creates a new project folder with the default run and component configurations
func Init(folder string) error {
	if _, err := os.Stat(folder); err == nil {
		return cerrors.Config{Path: folder, Reason: "folder already exists"}
	}

	dirs := []string{
		filepath.Join(folder, DefaultDataDir),
		filepath.Join(folder, DefaultConfigsDir),
	}
	for _, c := range ComponentCategories {
		dirs = append(dirs, filepath.Join(folder, DefaultComponentsRoot, c))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return errors.Wrapf(err, "unable to create %s", d)
		}
	}

	if err := os.WriteFile(filepath.Join(folder, MarkerFile), nil, 0644); err != nil {
		return errors.Wrapf(err, "unable to create project file")
	}

	err := fs.WalkDir(defaults, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel("defaults", path)
		if err != nil {
			return err
		}
		data, err := defaults.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(folder, rel), data, 0644)
	})
	if err != nil {
		return errors.Wrapf(err, "unable to write default configurations")
	}

	log.Infof("[Init]: created magicwand project %s", folder)
	return nil
}

// IsProject reports whether dir holds a project marker
func IsProject(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerFile))
	return err == nil && !info.IsDir()
}

// RequireProject fails when dir is not the root of a project
func RequireProject(dir string) error {
	if !IsProject(dir) {
		return cerrors.Config{Path: dir, Reason: "not in a magicwand project, run 'magicwand init --project <name>' first"}
	}
	return nil
}
