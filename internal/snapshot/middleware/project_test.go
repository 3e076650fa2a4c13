package middleware

import (
	"testing"

	"github.com/Roblox/rojo/internal/snapshot"
)

func TestProjectBarePathNode(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/t.project.json", `{"name":"t","tree":{"$path":"src"}}`).
		putDir("/proj/src").
		putFile("/proj/src/hello.lua", "return 1")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Name != "t" || snap.ClassName != "Folder" {
		t.Fatalf("unexpected root: %+v", snap)
	}
	if len(snap.Children) != 1 || snap.Children[0].Name != "hello" || snap.Children[0].ClassName != "ModuleScript" {
		t.Fatalf("unexpected children: %+v", snap.Children)
	}
	if snap.Children[0].Properties["Source"].Str != "return 1" {
		t.Fatalf("unexpected Source: %+v", snap.Children[0].Properties)
	}
	if !snap.Metadata.ProjectDefinition {
		t.Fatal("expected project_definition set on root")
	}
}

func TestProjectPathAndClassNameRequiresFolder(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/t.project.json", `{"name":"t","tree":{"$path":"src.lua","$className":"Model"}}`).
		putFile("/proj/src.lua", "return 1")

	_, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err == nil {
		t.Fatal("expected a ConfigError when $path+$className combine on a non-Folder source")
	}
}

func TestProjectPathAndClassNameRewritesFolder(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/t.project.json", `{"name":"t","tree":{"$path":"src","$className":"StarterGui"}}`).
		putDir("/proj/src")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "StarterGui" {
		t.Fatalf("expected class rewritten to StarterGui, got %s", snap.ClassName)
	}
}

func TestProjectSynthesizedNodeIgnoresUnknownInstances(t *testing.T) {
	fs := newFakeFS().putFile("/proj/t.project.json", `{"name":"t","tree":{"$className":"DataModel","Workspace":{"$className":"Workspace"}}}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Metadata.IgnoreUnknownInstances {
		t.Fatal("expected synthesized project node to set ignore_unknown_instances")
	}
	if len(snap.Children) != 1 || snap.Children[0].Name != "Workspace" {
		t.Fatalf("unexpected children: %+v", snap.Children)
	}
}

func TestProjectRejectsUnknownDollarKey(t *testing.T) {
	fs := newFakeFS().putFile("/proj/t.project.json", `{"name":"t","tree":{"$className":"DataModel","$bogus":true}}`)

	_, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err == nil {
		t.Fatal("expected an error for unknown $-prefixed key")
	}
}

func TestProjectRejectsUnknownTopLevelField(t *testing.T) {
	fs := newFakeFS().putFile("/proj/t.project.json", `{"name":"t","tree":{"$className":"Folder"},"servePrt":1234}`)

	_, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err == nil {
		t.Fatal("expected an error for a misspelled top-level field (servePrt)")
	}
}

func TestProjectRelevantPathsAnchorsOnMountedFolder(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/t.project.json", `{"name":"t","tree":{"$path":"src"}}`).
		putDir("/proj/src").
		putFile("/proj/src/hello.lua", "return 1")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/t.project.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metadata.RelevantPaths) == 0 || snap.Metadata.RelevantPaths[0] != "/proj/src" {
		t.Fatalf("expected RelevantPaths[0] to be the mounted folder /proj/src, got %v", snap.Metadata.RelevantPaths)
	}
	found := false
	for _, p := range snap.Metadata.RelevantPaths {
		if p == "/proj/t.project.json" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the project file path to still appear in RelevantPaths, got %v", snap.Metadata.RelevantPaths)
	}
}

func TestDefaultProjectJSONInDirectory(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj").
		putFile("/proj/default.project.json", `{"name":"t","tree":{"$className":"DataModel"}}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Name != "t" || snap.ClassName != "DataModel" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
