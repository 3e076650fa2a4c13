package project

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleProject = `{
	"name": "sample",
	"tree": {
		"$className": "DataModel",
		"ServerScriptService": {"$path": "src/server"}
	}
}`

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.project.json")
	if err := os.WriteFile(path, []byte(sampleProject), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Name != "sample" {
		t.Errorf("expected name 'sample', got %q", p.Name)
	}
	if p.FilePath != path {
		t.Errorf("expected FilePath %q, got %q", path, p.FilePath)
	}
	if p.FolderPath != dir {
		t.Errorf("expected FolderPath %q, got %q", dir, p.FolderPath)
	}
}

func TestLoadFuzzyDirectoryDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.project.json")
	if err := os.WriteFile(path, []byte(sampleProject), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.FilePath != path {
		t.Errorf("expected fuzzy-resolved path %q, got %q", path, p.FilePath)
	}
}

func TestLoadMissingFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error when no project file is present")
	}
}

func TestLoadMissingNameFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.project.json")
	if err := os.WriteFile(path, []byte(`{"tree": {"$className": "Folder"}}`), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a project file missing 'name'")
	}
}

func TestLoadInvalidTreeFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.project.json")
	if err := os.WriteFile(path, []byte(`{"name": "x", "tree": {}}`), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a tree node with neither $className nor $path")
	}
}

func TestLoadUnknownTopLevelFieldFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.project.json")
	body := `{"name": "x", "tree": {"$className": "Folder"}, "servePrt": 1234}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a misspelled top-level field (servePrt)")
	}
}
