// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

// Version is the semantic version of the engine, checked against the
// manifest's required range.
const Version = "0.1.4"
