// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the filesystem predicates project loading relies on.
package fs

import (
	"os"

	"github.com/pkg/errors"
)

// IsRegular reports whether name exists and is a regular file. A missing
// path is not an error; it simply reports false.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fi.IsDir() {
		return false, errors.Errorf("%q is a directory, should be a file", name)
	}
	return fi.Mode().IsRegular(), nil
}

// IsDir reports whether name exists and is a directory. A missing path
// is not an error; it simply reports false.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}
