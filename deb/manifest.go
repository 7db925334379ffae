// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package deb

import (
    "pault.ag/go/debian/control"
    "pault.ag/go/debian/dependency"
    "fmt"
    "io"
    "os"
    str "strings"
)

// Control file of the final package
type Manifest struct {
    Package string
    Version string
    Section string
    Priority string
    Architecture string
    Depends string
    Maintainer string
    Description string
}

// Turn a whitespace separated dependency list into a Depends value
func RenderDepends(list string) string {
    return str.Join(str.Fields(list), ", ")
}

// Read and render a dependency list file
func ReadDepends(path string) (string, error) {
    raw, err := os.ReadFile(path)
    if err != nil {
        return "", fmt.Errorf("Error %w reading dependency list %s", err, path)
    }
    depends := RenderDepends(string(raw))
    if depends == "" {
        return "", nil
    }
    // Catch typos before dpkg does
    _, err = dependency.Parse(depends)
    if err != nil {
        return "", fmt.Errorf("Error %w parsing dependency list %s", err, path)
    }
    return depends, nil
}

// Build the manifest for a package
func NewManifest(name string, version string, arch string, depends string, maintainer string, description string) Manifest {
    return Manifest{
        Package: name,
        Version: version,
        Section: "base",
        Priority: "optional",
        Architecture: arch,
        Depends: depends,
        Maintainer: maintainer,
        Description: description,
    }
}

// Write the manifest as a control file
func (m Manifest) Encode(w io.Writer) error {
    err := control.Marshal(w, m)
    if err != nil {
        return fmt.Errorf("Error %w writing control file for %s", err, m.Package)
    }
    return nil
}
