// Package project loads and represents a Rojo-style *.project.json document:
// a declarative description of an instance tree rooted in files on disk.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Roblox/rojo/internal/rojoerr"
)

const (
	fileSuffix     = ".project.json"
	defaultBaseName = "default.project.json"
)

// Project is the top-level parsed project document.
type Project struct {
	Name            string   `json:"name"`
	ServePort       *uint16  `json:"servePort,omitempty"`
	ServePlaceIDs   []uint64 `json:"servePlaceIds,omitempty"`
	GlobIgnorePaths []string `json:"globIgnorePaths,omitempty"`
	Tree            *Node    `json:"tree"`

	// FilePath is the resolved on-disk location of the project file,
	// recorded at load time so later error messages can reference it.
	FilePath string `json:"-"`
	// FolderPath is FilePath's containing directory; all relative $path
	// entries inside the tree are resolved against it.
	FolderPath string `json:"-"`
}

// Load performs a "fuzzy" load: path may point directly at a *.project.json
// file, or at a directory containing default.project.json.
func Load(path string) (*Project, error) {
	resolved, err := resolveProjectFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, rojoerr.IOWrap(fmt.Sprintf("reading project file %s", resolved), err)
	}

	var p Project
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, rojoerr.ConfigWrap(fmt.Sprintf("parsing project file %s", resolved), err)
	}

	if p.Name == "" {
		return nil, rojoerr.Config(fmt.Sprintf("project file %s is missing required field 'name'", resolved))
	}
	if p.Tree == nil {
		return nil, rojoerr.Config(fmt.Sprintf("project file %s is missing required field 'tree'", resolved))
	}
	if err := p.Tree.validate(); err != nil {
		return nil, rojoerr.ConfigWrap(fmt.Sprintf("project file %s has an invalid tree", resolved), err)
	}

	p.FilePath = resolved
	p.FolderPath = filepath.Dir(resolved)

	return &p, nil
}

// resolveProjectFile implements the fuzzy lookup: an explicit file path is
// used as-is; a directory is searched for <dirname>.project.json then
// default.project.json.
func resolveProjectFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", rojoerr.IOWrap(fmt.Sprintf("locating project path %s", path), err)
	}

	if !info.IsDir() {
		return path, nil
	}

	candidates := []string{
		filepath.Join(path, filepath.Base(path)+fileSuffix),
		filepath.Join(path, defaultBaseName),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", rojoerr.Config(fmt.Sprintf("no project file found in %s (looked for %v)", path, candidates))
}

// IsProjectFile reports whether name looks like a project file, matching the
// Project snapshot middleware's first-match rule.
func IsProjectFile(name string) bool {
	return strings.HasSuffix(name, fileSuffix)
}
