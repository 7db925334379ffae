// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package build

import (
    "fmt"
    "path"
)

// Component struct
type Component int

// Components in the order they are built
const (
    SpiceGtk Component = iota
    VirtViewer
    ClientDebs
    FinalPackage
)

var names = map[Component]string{
    SpiceGtk: "spice-gtk",
    VirtViewer: "virt-viewer",
    ClientDebs: "client-debs",
    FinalPackage: "neverware-virt-viewer-deb",
}

// Build scripts, relative to the jail root. Versions are part of the name.
var scripts = map[Component]string{
    SpiceGtk: path.Join("/build_scripts", "build_spice_gtk_0.24.sh"),
    VirtViewer: path.Join("/build_scripts", "build_virt_viewer_0.6.0.sh"),
}

func (c Component) String() string {
    if name, ok := names[c]; ok {
        return name
    }
    return fmt.Sprintf("component(%d)", int(c))
}

// In-jail script for c, if it is built by one
func (c Component) Script() (string, bool) {
    s, ok := scripts[c]
    return s, ok
}

// All components in build order
func Components() []Component {
    return []Component{SpiceGtk, VirtViewer, ClientDebs, FinalPackage}
}

// Names of all components in build order
func Names() []string {
    var out []string
    for _, c := range Components() {
        out = append(out, c.String())
    }
    return out
}

// Look up a component by name
func ParseComponent(name string) (Component, error) {
    for _, c := range Components() {
        if c.String() == name {
            return c, nil
        }
    }
    return 0, fmt.Errorf("unknown component %s", name)
}
