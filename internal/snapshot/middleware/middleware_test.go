package middleware

import (
	"testing"

	"github.com/Roblox/rojo/internal/snapshot"
)

func TestLuaModuleScript(t *testing.T) {
	fs := newFakeFS().putFile("/proj/hello.lua", "return 1")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/hello.lua")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.Name != "hello" || snap.ClassName != "ModuleScript" {
		t.Fatalf("got name=%s class=%s", snap.Name, snap.ClassName)
	}
	if src := snap.Properties["Source"]; src.Str != "return 1" {
		t.Fatalf("unexpected Source: %+v", src)
	}
}

func TestLuaServerAndClientSuffixes(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/a.server.lua", "print(1)").
		putFile("/proj/b.client.lua", "print(2)")

	serverSnap, _ := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/a.server.lua")
	if serverSnap.ClassName != "Script" || serverSnap.Name != "a" {
		t.Fatalf("server script mismatch: %+v", serverSnap)
	}

	clientSnap, _ := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/b.client.lua")
	if clientSnap.ClassName != "LocalScript" || clientSnap.Name != "b" {
		t.Fatalf("client script mismatch: %+v", clientSnap)
	}
}

func TestInitPromotion(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj/hello").
		putFile("/proj/hello/init.server.lua", "print(1)")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "Script" {
		t.Fatalf("expected init promotion to Script, got %s", snap.ClassName)
	}
	if snap.Name != "hello" {
		t.Fatalf("expected name hello, got %s", snap.Name)
	}
	if len(snap.Children) != 0 {
		t.Fatalf("expected no children, got %d", len(snap.Children))
	}
}

func TestInitPromotionKeepsSiblingChildren(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj/hello").
		putFile("/proj/hello/init.server.lua", "print(1)").
		putFile("/proj/hello/world.lua", "return 2")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Children) != 1 || snap.Children[0].Name != "world" {
		t.Fatalf("expected one child 'world', got %+v", snap.Children)
	}
}

func TestDirectoryDemotesWithoutInit(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj/hello").
		putFile("/proj/hello/world.lua", "return 2")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "Folder" {
		t.Fatalf("expected Folder, got %s", snap.ClassName)
	}
	if len(snap.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(snap.Children))
	}
}

func TestMetaOverlayOnLuaFile(t *testing.T) {
	fs := newFakeFS().
		putFile("/proj/config.lua", "return {}").
		putFile("/proj/config.meta.json", `{"className":"Configuration"}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/config.lua")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "Configuration" {
		t.Fatalf("expected meta override to Configuration, got %s", snap.ClassName)
	}
	found := false
	for _, p := range snap.Metadata.RelevantPaths {
		if p == "/proj/config.meta.json" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected meta path in relevant_paths, got %v", snap.Metadata.RelevantPaths)
	}
}

func TestMetaAloneProducesNoInstance(t *testing.T) {
	fs := newFakeFS().putFile("/proj/config.meta.json", `{"className":"Configuration"}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/config.meta.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no instance from a bare meta file, got %+v", snap)
	}
}

func TestDirectorySkipsMetaAsDirectChild(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj").
		putFile("/proj/config.lua", "return {}").
		putFile("/proj/config.meta.json", `{}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Children) != 1 {
		t.Fatalf("expected exactly 1 child (config), got %d: %+v", len(snap.Children), snap.Children)
	}
}

func TestCSVLocalizationTable(t *testing.T) {
	fs := newFakeFS().putFile("/proj/strings.csv", "Key,Source,Context,Example,es\ngreeting,Hello,,greeting used on the home screen,Hola\n")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/strings.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "LocalizationTable" || snap.Name != "strings" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	contents := snap.Properties["Contents"].Str
	if contents == "" {
		t.Fatal("expected non-empty Contents")
	}
}

func TestTXTStringValue(t *testing.T) {
	fs := newFakeFS().putFile("/proj/notes.txt", "hello world")

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ClassName != "StringValue" || snap.Properties["Value"].Str != "hello world" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestJSONModel(t *testing.T) {
	fs := newFakeFS().putFile("/proj/widget.model.json", `{
		"ClassName": "Model",
		"Children": [
			{"Name": "Part", "ClassName": "Part", "Properties": {"Transparency": 0.5}}
		]
	}`)

	snap, err := Snapshot(snapshot.NewInstanceContext(), fs, "/proj/widget.model.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Name != "widget" || snap.ClassName != "Model" {
		t.Fatalf("unexpected root: %+v", snap)
	}
	if len(snap.Children) != 1 || snap.Children[0].Name != "Part" {
		t.Fatalf("unexpected children: %+v", snap.Children)
	}
}

func TestIgnoreGlobSuppressesPath(t *testing.T) {
	fs := newFakeFS().
		putDir("/proj").
		putFile("/proj/keep.lua", "return 1").
		putFile("/proj/skip.lua", "return 2")

	ctx := snapshot.NewInstanceContext().WithIgnoreGlobs(snapshot.IgnoreGlob{Pattern: "skip.lua"})

	snap, err := Snapshot(ctx, fs, "/proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Children) != 1 || snap.Children[0].Name != "keep" {
		t.Fatalf("expected only 'keep' child, got %+v", snap.Children)
	}
}
