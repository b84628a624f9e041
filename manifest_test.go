// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

import (
	"strings"
	"testing"
)

func TestReadManifest(t *testing.T) {
	const in = `
required = ">=0.1.0"

[analysis]
  dir = "bitcode"
  extension = "ll"
  module = "demo"
  exclude = ["scratch", "broken"]
  trace = true
`
	m, warns, err := readManifest(strings.NewReader(in))
	if err != nil {
		t.Fatalf("failed to read manifest: %s", err)
	}
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if m.Required != ">=0.1.0" {
		t.Errorf("required: got %q", m.Required)
	}
	if m.Analysis.Dir != "bitcode" || m.Analysis.Extension != "ll" || m.Analysis.Module != "demo" {
		t.Errorf("analysis config: got %+v", m.Analysis)
	}
	if !m.Analysis.Trace {
		t.Error("trace should be enabled")
	}
	if !m.ExcludesStem("scratch") || !m.ExcludesStem("broken") || m.ExcludesStem("demo") {
		t.Errorf("exclude stems: got %v", m.Analysis.Exclude)
	}
}

func TestReadManifestDefaults(t *testing.T) {
	m, warns, err := readManifest(strings.NewReader(""))
	if err != nil {
		t.Fatalf("failed to read empty manifest: %s", err)
	}
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	d := DefaultManifest()
	if m.Analysis.Dir != d.Analysis.Dir || m.Analysis.Extension != d.Analysis.Extension || m.Analysis.Module != d.Analysis.Module {
		t.Errorf("empty manifest should carry defaults, got %+v", m.Analysis)
	}
}

func TestReadManifestUnknownKeys(t *testing.T) {
	const in = `
required = ">=0.1.0"
bogus = true

[analysis]
  dir = "bitcode"
`
	_, warns, err := readManifest(strings.NewReader(in))
	if err != nil {
		t.Fatalf("failed to read manifest: %s", err)
	}
	if len(warns) != 1 {
		t.Fatalf("expected one warning, got %v", warns)
	}
	if !strings.Contains(warns[0].Error(), "bogus") {
		t.Errorf("warning should name the unknown field: %s", warns[0])
	}
}

func TestReadManifestBadRange(t *testing.T) {
	if _, _, err := readManifest(strings.NewReader(`required = "not-a-range"`)); err == nil {
		t.Fatal("expected an error for an invalid version range")
	}
}

func TestCheckEngineVersion(t *testing.T) {
	tests := []struct {
		required string
		version  string
		wantErr  bool
	}{
		{"", "0.1.4", false},
		{">=0.1.0", "0.1.4", false},
		{">=0.1.0, <1.0.0", "0.1.4", false},
		{">=99.0.0", "0.1.4", true},
		{">=0.1.0", "bogus", true},
	}
	for _, tt := range tests {
		m := &Manifest{Required: tt.required}
		err := m.CheckEngineVersion(tt.version)
		if (err != nil) != tt.wantErr {
			t.Errorf("required %q against %q: err=%v, wantErr=%v", tt.required, tt.version, err, tt.wantErr)
		}
	}
}
