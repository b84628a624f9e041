// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsRegular(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.ll")
	if err := os.WriteFile(file, []byte("; empty\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		want    bool
		wantErr bool
	}{
		{file, true, false},
		{filepath.Join(dir, "missing.ll"), false, false},
		{dir, false, true},
	}
	for _, tt := range tests {
		got, err := IsRegular(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("IsRegular(%q): err=%v, wantErr=%v", tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("IsRegular(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.ll")
	if err := os.WriteFile(file, []byte("; empty\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{dir, true},
		{file, false},
		{filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		got, err := IsDir(tt.path)
		if err != nil {
			t.Errorf("IsDir(%q): %s", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("IsDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
