// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package confecalc

import (
	"fmt"
	"runtime/debug"
)

const root = "github.com/LynnColeArt/confecalc"

// Version returns the version of confecalc and its checksum, either as
// the main module of a binary (the cmd tools) or as a dependency. Both
// are empty in binaries built without module support.
//
// A replaced dependency is reported as
//
//	"version=>[replace-path] [replace-version]"
//
// with the replace sum in place of the original sum.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path == root {
			if m.Replace != nil {
				switch {
				case m.Replace.Version != "" && m.Replace.Path != "":
					return fmt.Sprintf("%s=>%s %s", m.Version, m.Replace.Path, m.Replace.Version), m.Replace.Sum
				case m.Replace.Version != "":
					return fmt.Sprintf("%s=>%s", m.Version, m.Replace.Version), m.Replace.Sum
				case m.Replace.Path != "":
					return fmt.Sprintf("%s=>%s", m.Version, m.Replace.Path), m.Replace.Sum
				default:
					return m.Version + "*", m.Sum + "*"
				}
			}
			return m.Version, m.Sum
		}
	}
	return "", ""
}

// VersionString is Version for logs and run records: "devel" when no
// version is known.
func VersionString() string {
	if v, _ := Version(); v != "" && v != "(devel)" {
		return v
	}
	return "devel"
}
