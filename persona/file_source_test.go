package persona

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const validDoc = `---
id: alpha
trigger_description: alpha things
---
Alpha instructions.`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileSourceList(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "alpha.md", validDoc)
	writeDoc(t, dir, "notes.txt", "ignored, wrong extension")

	src := FileSource{Root: dir}
	records, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "alpha" || records[0].Instructions != "Alpha instructions." {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestFileSourceAllowlist(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "alpha.md", validDoc)
	writeDoc(t, dir, "beta.md", `---
id: beta
trigger_description: beta things
---
Beta instructions.`)

	src := FileSource{Root: dir, Allowlist: map[string]struct{}{"beta": {}}}
	records, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "beta" {
		t.Fatalf("expected allowlisted record only, got %+v", records)
	}
}

func TestFileSourceMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "bad.md", "no front-matter here")

	src := FileSource{Root: dir}
	if _, err := src.List(context.Background()); err == nil {
		t.Fatalf("expected parse error for document without front-matter")
	}
}

func TestFileSourceEmptyRoot(t *testing.T) {
	src := FileSource{}
	if _, err := src.List(context.Background()); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestFileSourceCustomParse(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "raw.md", "whole file is the body")

	src := FileSource{
		Root: dir,
		Parse: func(name, path string, data []byte) (Record, error) {
			return Record{
				ID:                 name,
				TriggerDescription: "raw",
				Instructions:       string(data),
				Source:             path,
			}, nil
		},
	}
	records, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "raw" {
		t.Fatalf("expected custom-parsed record, got %+v", records)
	}
}
