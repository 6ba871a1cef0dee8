// cmd/algoc/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"algo/internal/ast"
	"algo/internal/astdump"
	"algo/internal/bundle"
	"algo/internal/cache"
	"algo/internal/lexer"
	"algo/internal/llir"
	"algo/internal/lowering"
	"algo/internal/parser"
	"algo/internal/ramgen"
	"algo/internal/watch"
)

const version = "0.1.0"

// commandAliases mirrors the short-form aliasing the teacher's CLI
// offers for its subcommands.
var commandAliases = map[string]string{
	"b": "build",
	"w": "watch",
	"c": "clean",
	"d": "dump",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("algoc %s\n", version)
	case "build":
		if err := buildCommand(args[1:]); err != nil {
			fatal(err)
		}
	case "watch":
		if err := watchCommand(args[1:]); err != nil {
			fatal(err)
		}
	case "clean":
		if err := cleanCommand(args[1:]); err != nil {
			fatal(err)
		}
	case "dump":
		if err := dumpCommand(args[1:]); err != nil {
			fatal(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "commande inconnue: %s\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func fatal(err error) {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\033[31merror:\033[0m %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

// buildConfig is parsed from a build/watch invocation's flags.
type buildConfig struct {
	file    string
	emit    string // "ram", "llir", or "both"
	outDir  string
	bundle  bool
}

func parseBuildArgs(args []string) (*buildConfig, error) {
	cfg := &buildConfig{emit: "ram", outDir: "."}
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-emit" && i+1 < len(args):
			i++
			cfg.emit = args[i]
		case a == "-o" && i+1 < len(args):
			i++
			cfg.outDir = args[i]
		case a == "-bundle":
			cfg.bundle = true
		case strings.HasPrefix(a, "-"):
			return nil, errors.Errorf("option inconnue: %s", a)
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) != 1 {
		return nil, errors.New("un seul fichier source attendu")
	}
	cfg.file = positional[0]
	switch cfg.emit {
	case "ram", "llir", "both":
	default:
		return nil, errors.Errorf("-emit doit être 'ram', 'llir' ou 'both', pas %q", cfg.emit)
	}
	return cfg, nil
}

// compile parses source into functions and, per cfg.emit, generates
// one or both back-ends' artifacts concurrently via errgroup — the RAM
// and LLIR emitters are independent consumers of the (lowered, for
// LLIR) function list, so there is no reason to serialize them.
func compile(source []byte, file string, cfg *buildConfig) ([]bundle.Artifact, error) {
	toks := lexer.NewScanner(string(source)).ScanTokens()
	fns, err := parser.New(toks, file).Program()
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	var artifacts []bundle.Artifact
	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())

	if cfg.emit == "ram" || cfg.emit == "both" {
		g.Go(func() error {
			text, err := ramgen.Program(fns, file)
			if err != nil {
				return errors.Wrap(err, "génération RAM")
			}
			mu.Lock()
			artifacts = append(artifacts, bundle.Artifact{Name: base + ".ram", Data: []byte(text)})
			mu.Unlock()
			return nil
		})
	}

	if cfg.emit == "llir" || cfg.emit == "both" {
		g.Go(func() error {
			lowered, err := lowering.Program(cloneFns(fns))
			if err != nil {
				return errors.Wrap(err, "abaissement HIR")
			}
			mod, err := llir.Module(lowered, base)
			if err != nil {
				return errors.Wrap(err, "génération LLIR")
			}
			objPath := filepath.Join(cfg.outDir, base+".o")
			if err := llir.EmitObject(mod, objPath); err != nil {
				return errors.Wrap(err, "émission objet natif")
			}
			data, err := os.ReadFile(objPath)
			if err != nil {
				return errors.Wrap(err, "lecture objet émis")
			}
			mu.Lock()
			artifacts = append(artifacts, bundle.Artifact{Name: base + ".o", Data: data})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// cloneFns exists because lowering replaces each Fn node's Body in
// place; building both back-ends from the same parse means the RAM path
// (which must see the unlowered AST, per its own direct array-op
// emission) needs Fn nodes of its own. A shallow copy is enough because
// lowering copies, rather than mutates, the nested nodes it rewrites.
func cloneFns(fns []*ast.Node) []*ast.Node {
	out := make([]*ast.Node, len(fns))
	for i, fn := range fns {
		clone := *fn
		out[i] = &clone
	}
	return out
}

func buildCommand(args []string) error {
	cfg, err := parseBuildArgs(args)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(cfg.file)
	if err != nil {
		return errors.Wrapf(err, "lecture de %s", cfg.file)
	}

	projCfg, err := bundle.LoadConfig(filepath.Dir(cfg.file))
	if err != nil {
		return err
	}
	cacheDSN := projCfg.CacheDSN
	if cacheDSN == "" {
		cacheDSN = filepath.Join(os.TempDir(), "algoc-cache.db")
	}
	store, err := cache.Open("sqlite", cacheDSN)
	if err == nil {
		defer store.Close()
		key := cache.Key(source, cfg.emit)
		if _, hit, _ := store.Lookup(context.Background(), key); hit {
			fmt.Println("build: source déjà présente dans le cache, recompilation")
		}
	}

	artifacts, err := compile(source, cfg.file, cfg)
	if err != nil {
		return err
	}

	for _, a := range artifacts {
		path := filepath.Join(cfg.outDir, a.Name)
		if err := os.WriteFile(path, a.Data, 0644); err != nil {
			return errors.Wrapf(err, "écriture de %s", path)
		}
		fmt.Printf("écrit %s\n", path)
	}

	if cfg.bundle {
		bundlePath := filepath.Join(cfg.outDir, strings.TrimSuffix(filepath.Base(cfg.file), filepath.Ext(cfg.file))+".algobundle")
		m, err := bundle.Write(bundlePath, cfg.file, artifacts)
		if err != nil {
			return err
		}
		fmt.Printf("bundle: %s (%s)\n", bundlePath, m.ID)
	}
	return nil
}

func watchCommand(args []string) error {
	cfg, err := parseBuildArgs(args)
	if err != nil {
		return err
	}
	srv := watch.NewServer()
	go func() {
		log.Println("watch: diagnostics websocket sur :7337")
		http.Handle("/diagnostics", srv)
		log.Println(http.ListenAndServe(":7337", nil))
	}()

	stop := make(chan struct{})
	defer close(stop)
	return watch.Watch(cfg.file, 500*time.Millisecond, func(source []byte) error {
		_, err := compile(source, cfg.file, cfg)
		return err
	}, srv, stop)
}

func cleanCommand(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.ram"))
	if err != nil {
		return err
	}
	objMatches, _ := filepath.Glob(filepath.Join(dir, "*.o"))
	matches = append(matches, objMatches...)
	bundleMatches, _ := filepath.Glob(filepath.Join(dir, "*.algobundle"))
	matches = append(matches, bundleMatches...)

	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return errors.Wrapf(err, "suppression de %s", m)
		}
		fmt.Printf("supprimé %s\n", m)
	}
	return nil
}

func dumpCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("un seul fichier source attendu")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "lecture de %s", args[0])
	}
	toks := lexer.NewScanner(string(source)).ScanTokens()
	fns, err := parser.New(toks, args[0]).Program()
	if err != nil {
		return err
	}
	astdump.Fprint(os.Stdout, fns)
	return nil
}

func showUsage() {
	fmt.Print(`algoc - compilateur ALGO

Usage:
  algoc build <fichier.algo> [-emit ram|llir|both] [-o <dossier>] [-bundle]
  algoc watch <fichier.algo> [-emit ram|llir|both]
  algoc clean [<dossier>]
  algoc dump <fichier.algo>
  algoc version
`)
}
