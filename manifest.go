// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

import (
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ManifestName is the manifest file name used by haybale.
const ManifestName = "Haybale.toml"

// Manifest holds a project's analysis configuration, as read from
// Haybale.toml on disk. All fields are optional; zero values fall back
// to the defaults below.
type Manifest struct {
	// Required, when non-empty, is a semver range the engine version
	// must satisfy for analysis to proceed.
	Required string

	Analysis AnalysisConfig
}

// AnalysisConfig configures where IR modules are found and how they are
// analyzed.
type AnalysisConfig struct {
	// Dir is the root directory holding one subdirectory per module,
	// each containing <module>.<Extension>.
	Dir string

	// Extension is the IR file extension, without a leading dot.
	Extension string

	// Module is the module analyzed when none is named on the command
	// line.
	Module string

	// Exclude lists file stems to leave out of directory loads, as
	// reported by ExcludesStem. The haybale driver loads a single module
	// file and does not consult it.
	Exclude []string

	// Trace enables solver trace logging.
	Trace bool
}

const (
	defaultAnalysisDir = "c_examples"
	defaultExtension   = "ll"
	defaultModule      = "basic"
)

type rawManifest struct {
	Required string      `toml:"required,omitempty"`
	Analysis rawAnalysis `toml:"analysis,omitempty"`
}

type rawAnalysis struct {
	Dir       string   `toml:"dir,omitempty"`
	Extension string   `toml:"extension,omitempty"`
	Module    string   `toml:"module,omitempty"`
	Exclude   []string `toml:"exclude,omitempty"`
	Trace     bool     `toml:"trace,omitempty"`
}

// manifestKnownKeys are the valid top-level keys of a manifest. Anything
// else produces a warning, not an error, so that newer manifests degrade
// gracefully on older engines.
var manifestKnownKeys = map[string]bool{
	"required": true,
	"analysis": true,
}

// DefaultManifest returns the manifest used when no Haybale.toml exists.
func DefaultManifest() *Manifest {
	return &Manifest{
		Analysis: AnalysisConfig{
			Dir:       defaultAnalysisDir,
			Extension: defaultExtension,
			Module:    defaultModule,
		},
	}
}

// ReadManifestFile reads the manifest at path. The error is left
// unwrapped when the file does not exist, so callers can treat an
// absent manifest as all-defaults via os.IsNotExist.
func ReadManifestFile(path string) (*Manifest, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return readManifest(f)
}

// readManifest returns a Manifest read from r and a slice of warnings
// for valid-but-unrecognized keys.
func readManifest(r io.Reader) (*Manifest, []error, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to parse the manifest as TOML")
	}

	var warns []error
	for _, k := range tree.Keys() {
		if !manifestKnownKeys[k] {
			warns = append(warns, fmt.Errorf("unknown field in manifest: %s", k))
		}
	}

	raw := rawManifest{}
	if err := tree.Unmarshal(&raw); err != nil {
		return nil, warns, errors.Wrap(err, "unable to parse the manifest as TOML")
	}

	m := fromRawManifest(raw)
	if m.Required != "" {
		if _, err := semver.NewConstraint(m.Required); err != nil {
			return nil, warns, errors.Wrapf(err, "invalid required version range %q", m.Required)
		}
	}
	return m, warns, nil
}

func fromRawManifest(raw rawManifest) *Manifest {
	m := DefaultManifest()
	m.Required = raw.Required
	if raw.Analysis.Dir != "" {
		m.Analysis.Dir = raw.Analysis.Dir
	}
	if raw.Analysis.Extension != "" {
		m.Analysis.Extension = raw.Analysis.Extension
	}
	if raw.Analysis.Module != "" {
		m.Analysis.Module = raw.Analysis.Module
	}
	m.Analysis.Exclude = raw.Analysis.Exclude
	m.Analysis.Trace = raw.Analysis.Trace
	return m
}

// CheckEngineVersion reports whether the running engine satisfies the
// manifest's required version range. A manifest without a required range
// accepts any engine.
func (m *Manifest) CheckEngineVersion(version string) error {
	if m.Required == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Required)
	if err != nil {
		return errors.Wrapf(err, "invalid required version range %q", m.Required)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid engine version %q", version)
	}
	if !c.Check(v) {
		return errors.Errorf("manifest requires engine version %s, but this is version %s", m.Required, version)
	}
	return nil
}

// ExcludesStem reports whether the manifest excludes files whose stem
// (base name without extension) equals stem.
func (m *Manifest) ExcludesStem(stem string) bool {
	for _, e := range m.Analysis.Exclude {
		if e == stem {
			return true
		}
	}
	return false
}
