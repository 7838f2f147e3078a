package toolindex

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDescriptor(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "search.json", `{"id":"search","name":"Web Search","description":"searches the web"}`)
	writeDescriptor(t, dir, "calc.json", `{"name":"Calculator"}`)
	writeDescriptor(t, dir, "notes.txt", `ignored`)

	ix := Load(dir, discardLogger())

	snap := ix.Snapshot()
	if snap.Count != 2 {
		t.Fatalf("want 2 tools, got %d (%v)", snap.Count, snap.Names)
	}
	if snap.Names[0] != "Calculator" || snap.Names[1] != "Web Search" {
		t.Errorf("unexpected names: %v", snap.Names)
	}

	tool, ok := ix.Get("search")
	if !ok {
		t.Fatalf("search tool missing")
	}
	if tool.Description != "searches the web" {
		t.Errorf("unexpected tool: %+v", tool)
	}

	// Descriptor without an id falls back to its file name.
	if _, ok := ix.Get("calc"); !ok {
		t.Errorf("calc tool missing")
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	ix := Load(filepath.Join(t.TempDir(), "does-not-exist"), discardLogger())

	if snap := ix.Snapshot(); snap.Count != 0 {
		t.Fatalf("want empty index, got %d", snap.Count)
	}
}

func TestLoadSkipsBrokenDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "good.json", `{"id":"good","name":"Good"}`)
	writeDescriptor(t, dir, "bad.json", `{not json`)

	ix := Load(dir, discardLogger())

	snap := ix.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("want 1 tool, got %d", snap.Count)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", `{"id":"a","name":"A"}`)

	ix := Load(dir, discardLogger())
	if snap := ix.Snapshot(); snap.Count != 1 {
		t.Fatalf("want 1 tool, got %d", snap.Count)
	}

	writeDescriptor(t, dir, "b.json", `{"id":"b","name":"B"}`)
	ix.reload()

	if snap := ix.Snapshot(); snap.Count != 2 {
		t.Fatalf("want 2 tools after reload, got %d", snap.Count)
	}
}
