// Package bundle packages a compile's output artifacts (RAM assembly
// text, and/or a native object file) into a single distributable
// archive, the same tar+gzip+manifest shape the teacher's builder used
// for its own bundles, adapted from bytecode modules to ALGO's two
// back-end artifacts.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Artifact is one named file going into the bundle (e.g. "program.ram",
// "program.o").
type Artifact struct {
	Name string
	Data []byte
}

// Manifest describes a bundle's contents; it is serialized to
// manifest.json at the archive root.
type Manifest struct {
	ID         string            `json:"id"`
	EntryPoint string            `json:"entry_point"`
	Timestamp  time.Time         `json:"timestamp"`
	Checksums  map[string]string `json:"checksums"`
	Sizes      map[string]string `json:"sizes"`
}

// Write builds a gzip-compressed tar archive at path containing every
// artifact plus a generated manifest.json, and returns the manifest for
// the caller to report back to the user.
func Write(path, entryPoint string, artifacts []Artifact) (*Manifest, error) {
	m := &Manifest{
		ID:         uuid.NewString(),
		EntryPoint: entryPoint,
		Timestamp:  time.Now(),
		Checksums:  make(map[string]string, len(artifacts)),
		Sizes:      make(map[string]string, len(artifacts)),
	}
	for _, a := range artifacts {
		sum := sha256.Sum256(a.Data)
		m.Checksums[a.Name] = hex.EncodeToString(sum[:])
		m.Sizes[a.Name] = humanize.Bytes(uint64(len(a.Data)))
	}

	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("bundle: encode manifest: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: create %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	if err := writeEntry(tw, "manifest.json", manifestJSON); err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if err := writeEntry(tw, a.Name, a.Data); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0644, ModTime: time.Now()}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("bundle: header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("bundle: write %s: %w", name, err)
	}
	return nil
}

// ProjectConfig is algo.json: the project manifest algoc reads before a
// build, grounded on the teacher's sentra.json ProjectManifest (entry
// point, output path, optional cache DSN) but trimmed to what a
// single-file ALGO compile actually needs — there is no dependency
// graph to record (§5 Non-goals: no separate compilation).
type ProjectConfig struct {
	EntryPoint string `json:"entry_point"`
	OutputDir  string `json:"output_dir"`
	CacheDSN   string `json:"cache_dsn"`
}

// defaultConfig is used when algo.json is absent, the same
// "manifest-optional" behavior the teacher's builder falls back to.
func defaultConfig() *ProjectConfig {
	return &ProjectConfig{EntryPoint: "main.algo", OutputDir: "."}
}

// LoadConfig reads algo.json from dir, or returns defaultConfig() if no
// such file exists.
func LoadConfig(dir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "algo.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("bundle: read algo.json: %w", err)
	}
	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("bundle: parse algo.json: %w", err)
	}
	return cfg, nil
}

// Read extracts a bundle's manifest without unpacking artifacts.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("bundle: gzip %s: %w", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("bundle: %s has no manifest.json", path)
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: read %s: %w", path, err)
		}
		if hdr.Name != "manifest.json" {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("bundle: decode manifest: %w", err)
		}
		return &m, nil
	}
}
