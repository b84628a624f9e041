// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command haybale finds concrete argument assignments under which LLVM
// IR functions return zero, by symbolic execution.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aclements/go-z3/z3"
	"github.com/llir/llvm/ir"

	"github.com/Atul9/haybale"
	"github.com/Atul9/haybale/sym"
)

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	os.Exit(c.Run())
}

// A Config specifies a full configuration for a haybale execution.
type Config struct {
	Args           []string  // Command-line arguments, starting with the program name.
	Stdout, Stderr io.Writer // Log output
}

// Run executes a configuration and returns an exit code.
func (c *Config) Run() int {
	outLogger := log.New(c.Stdout, "", 0)
	errLogger := log.New(c.Stderr, "", 0)

	fs := flag.NewFlagSet(c.Args[0], flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	verbose := fs.Bool("v", false, "enable solver trace logging")
	manifestPath := fs.String("manifest", haybale.ManifestName, "path to the analysis manifest")
	dir := fs.String("dir", "", "override the IR root directory")
	fs.Usage = func() {
		errLogger.Println("haybale finds argument assignments under which compiled functions return zero")
		errLogger.Println()
		errLogger.Printf("Usage: %s [flags] [module [function]]\n", c.Args[0])
		errLogger.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(c.Args[1:]); err != nil {
		return 1
	}
	if fs.NArg() > 2 {
		fs.Usage()
		return 1
	}

	manifest, err := loadManifest(*manifestPath, errLogger)
	if err != nil {
		errLogger.Println(err)
		return 1
	}
	if err := manifest.CheckEngineVersion(haybale.Version); err != nil {
		errLogger.Println(err)
		return 1
	}

	cfg := manifest.Analysis
	if *dir != "" {
		cfg.Dir = *dir
	}

	var tl *log.Logger
	if *verbose || cfg.Trace {
		tl = errLogger
	}

	modname := cfg.Module
	if fs.NArg() >= 1 {
		modname = fs.Arg(0)
	}
	path := filepath.Join(cfg.Dir, modname, modname+"."+cfg.Extension)

	proj, err := haybale.FromPath(path)
	if err != nil {
		errLogger.Printf("failed to load module %s: %s\n", modname, err)
		return 1
	}

	var targets []*ir.Func
	if fs.NArg() == 2 {
		f, err := selectFunction(proj, fs.Arg(1))
		if err != nil {
			errLogger.Println(err)
			return 1
		}
		targets = []*ir.Func{f}
	} else {
		for f := range proj.AllFunctions() {
			if len(f.Blocks) == 0 {
				// Declarations have nothing to execute.
				continue
			}
			targets = append(targets, f)
		}
	}

	for _, f := range targets {
		outLogger.Printf("Finding zero of function %s...\n", f.Name())
		ctx := z3.NewContext(z3.NewContextConfig())
		args, found, err := sym.FindZero(ctx, f, tl)
		if err != nil {
			errLogger.Printf("solver failure on %s: %s\n", f.Name(), err)
			return 1
		}
		switch {
		case !found:
			outLogger.Println("Function never returns zero for any values of the arguments")
		case len(args) == 0:
			outLogger.Println("Function returns zero when passed no arguments")
		case len(args) == 1:
			outLogger.Printf("Function returns zero when passed the argument %d\n", args[0])
		default:
			outLogger.Printf("Function returns zero when passed the arguments %s\n", formatArgs(args))
		}
		outLogger.Println()
	}
	return 0
}

func loadManifest(path string, errLogger *log.Logger) (*haybale.Manifest, error) {
	m, warns, err := haybale.ReadManifestFile(path)
	if os.IsNotExist(err) {
		return haybale.DefaultManifest(), nil
	}
	for _, w := range warns {
		errLogger.Printf("warning: %s\n", w)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %s", path, err)
	}
	return m, nil
}

// selectFunction resolves name to a single function: an exact match
// first, otherwise a unique prefix match.
func selectFunction(proj *haybale.Project, name string) (*ir.Func, error) {
	if f, _, ok := proj.FunctionByName(name); ok {
		return f, nil
	}
	var matches []*ir.Func
	for f := range proj.FunctionsWithPrefix(name) {
		matches = append(matches, f)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("failed to find function named %s", name)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, f := range matches {
			names[i] = f.Name()
		}
		return nil, fmt.Errorf("%s is ambiguous; matching functions: %s", name, strings.Join(names, ", "))
	}
}

func formatArgs(args []uint64) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
