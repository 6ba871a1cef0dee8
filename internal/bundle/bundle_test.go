package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.algobundle")

	artifacts := []Artifact{
		{Name: "main.ram", Data: []byte("LOAD #4\nSTOP\n")},
	}
	written, err := Write(path, "main.algo", artifacts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	read, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read.ID != written.ID {
		t.Errorf("ID = %q, want %q", read.ID, written.ID)
	}
	if read.Checksums["main.ram"] != written.Checksums["main.ram"] {
		t.Error("checksum mismatch between written and read manifest")
	}
}

func TestLoadConfigDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EntryPoint != "main.algo" {
		t.Errorf("EntryPoint = %q, want main.algo", cfg.EntryPoint)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"entry_point": "prog.algo", "output_dir": "dist"}`
	if err := os.WriteFile(filepath.Join(dir, "algo.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EntryPoint != "prog.algo" || cfg.OutputDir != "dist" {
		t.Errorf("cfg = %+v, unexpected", cfg)
	}
}
