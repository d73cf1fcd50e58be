// SPDX-License-Identifier: MPL-2.0

package develop

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zhaixiaojuan/maturin/pkg/target"
)

// Environment variables naming the active environment, checked in order.
var prefixVariables = []string{"VIRTUAL_ENV", "CONDA_PREFIX"}

// Environment is a located Python environment.
type Environment struct {
	Prefix       string
	SitePackages string
	// Scripts receives console script launchers and .data/scripts files.
	Scripts string
	// Include is the base of installed .data/headers files.
	Include string
	// Python is the interpreter version the environment was created for;
	// zero on Windows layouts, which do not encode it.
	Python  target.PythonVersion
	Windows bool
}

// FindEnvironment locates the site-packages directory of the environment at
// prefix, or of the active virtualenv or conda environment when prefix is
// empty. interpreter ("3.12") selects among several lib/python3.* trees.
func FindEnvironment(prefix string, triple target.Triple, interpreter string) (*Environment, error) {
	if prefix == "" {
		for _, name := range prefixVariables {
			if v := os.Getenv(name); v != "" {
				prefix = v
				break
			}
		}
	}
	if prefix == "" {
		return nil, &EnvironmentNotFoundError{
			Reason: "no virtualenv or conda environment is active; set VIRTUAL_ENV or pass --env",
		}
	}
	prefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, &EnvironmentNotFoundError{Environment: prefix, Reason: err.Error()}
	}
	if info, err := os.Stat(prefix); err != nil || !info.IsDir() {
		return nil, &EnvironmentNotFoundError{Environment: prefix, Reason: "environment directory does not exist"}
	}

	if triple.OS == target.Windows {
		env := &Environment{
			Prefix:       prefix,
			SitePackages: filepath.Join(prefix, "Lib", "site-packages"),
			Scripts:      filepath.Join(prefix, "Scripts"),
			Include:      filepath.Join(prefix, "Include"),
			Windows:      true,
		}
		if !isDir(env.SitePackages) {
			return nil, &EnvironmentNotFoundError{Environment: prefix, Reason: "Lib/site-packages not found"}
		}
		return env, nil
	}

	matches, err := doublestar.Glob(os.DirFS(filepath.Join(prefix, "lib")), "python3.*/site-packages")
	if err != nil || len(matches) == 0 {
		return nil, &EnvironmentNotFoundError{Environment: prefix, Reason: "no lib/python3.*/site-packages directory"}
	}
	slices.Sort(matches)

	chosen := ""
	switch {
	case interpreter != "":
		want, err := target.ParsePythonVersion(interpreter)
		if err != nil {
			return nil, err
		}
		name := "python" + want.String() + "/site-packages"
		if !slices.Contains(matches, name) {
			return nil, &EnvironmentNotFoundError{
				Environment: prefix,
				Reason:      "no site-packages for python " + want.String() + " (found " + strings.Join(matches, ", ") + ")",
			}
		}
		chosen = name
	case len(matches) == 1:
		chosen = matches[0]
	default:
		return nil, &EnvironmentNotFoundError{
			Environment: prefix,
			Reason:      "several python versions installed (" + strings.Join(matches, ", ") + "); select one with --interpreter",
		}
	}

	versionDir, _, _ := strings.Cut(chosen, "/")
	version, err := target.ParsePythonVersion(strings.TrimPrefix(versionDir, "python"))
	if err != nil {
		return nil, &EnvironmentNotFoundError{Environment: prefix, Reason: err.Error()}
	}
	return &Environment{
		Prefix:       prefix,
		SitePackages: filepath.Join(prefix, "lib", filepath.FromSlash(chosen)),
		Scripts:      filepath.Join(prefix, "bin"),
		Include:      filepath.Join(prefix, "include", "site", versionDir),
		Python:       version,
	}, nil
}

// PythonExecutable returns the interpreter path used in launcher shebangs.
func (e *Environment) PythonExecutable() string {
	if e.Windows {
		return filepath.Join(e.Scripts, "python.exe")
	}
	return filepath.Join(e.Scripts, "python")
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
