// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package cfg

import (
    "errors"
    "path/filepath"
    "testing"

    "gotest.tools/v3/assert"
    "gotest.tools/v3/fs"
)

var testComponents = []string{"spice-gtk", "virt-viewer", "client-debs", "neverware-virt-viewer-deb"}

// Parse args the same way main does
func parse(t *testing.T, args ...string) *Cfgs {
    t.Helper()
    c := &Cfgs{}
    c.InitOpt()
    c.AddOpts(testComponents)
    remaining, err := c.Opt.Parse(args)
    assert.NilError(t, c.ActOpts(remaining, err))
    _, err = c.InitCfg()
    assert.NilError(t, err)
    assert.NilError(t, c.ParseCfg())
    return c
}

func TestParseVersion(t *testing.T) {
    tests := []struct {
        in string
        want string
        bad bool
    }{
        {in: "v1.2.3", want: "1.2-3"},
        {in: "v0.0.1", want: "0.0-1"},
        {in: "v10.20.30", want: "10.20-30"},
        {in: "bad", bad: true},
        {in: "1.2.3", bad: true},
        {in: "v1.2", bad: true},
        {in: "v1.2.3-rc1", bad: true},
    }
    for _, tt := range tests {
        t.Run(tt.in, func(t *testing.T) {
            got, err := ParseVersion(tt.in)
            if tt.bad {
                var verr *InvalidVersionError
                assert.Assert(t, errors.As(err, &verr))
                assert.Equal(t, verr.Version, tt.in)
                return
            }
            assert.NilError(t, err)
            assert.Equal(t, got, tt.want)
        })
    }
}

func TestDefaults(t *testing.T) {
    base := fs.NewDir(t, "base")
    defer base.Remove()

    c := parse(t, "--base-dir", base.Path(), "--virt-viewer")
    assert.NilError(t, c.Resolve())

    assert.Equal(t, c.JailDir, filepath.Join(base.Path(), "build_chroot"))
    assert.Equal(t, c.ChecksumPath, filepath.Join(base.Path(), "checksums.cfg"))
    assert.Equal(t, c.ArtifactPath, filepath.Join(base.Path(), "client_debs.tar.bz2"))
    assert.Equal(t, c.PackageIndexDir, "/chroot/precise/www/dists/precise/neverware/binary-i386")
    assert.Equal(t, c.Version, "0.0-1")
    assert.Equal(t, c.Suite, "saucy")
    assert.Equal(t, c.JailArch, "i386")
    assert.Equal(t, c.PackageArch, "i386")
    assert.Equal(t, c.LifecycleDir(), filepath.Join(base.Path(), "apt_configs", "neverware_virt_viewer"))
    assert.Assert(t, c.Selected["virt-viewer"])
    assert.Assert(t, !c.Selected["spice-gtk"])
    assert.Assert(t, c.AnythingToDo())
}

func TestBuildAll(t *testing.T) {
    c := parse(t, "--build-all", "--base-dir", "/srv/toolchain")
    assert.NilError(t, c.Resolve())
    for _, name := range testComponents {
        assert.Assert(t, c.Selected[name], name)
    }
}

func TestBadVersion(t *testing.T) {
    c := parse(t, "--deb-version", "bad", "--base-dir", "/srv/toolchain")
    err := c.Resolve()
    var verr *InvalidVersionError
    assert.Assert(t, errors.As(err, &verr))
}

func TestConfigOverlay(t *testing.T) {
    dir := fs.NewDir(t, "conf", fs.WithFile("conf.ini", `
[paths]
base = /srv/toolchain
jail = jails/build

[jail]
mirror = http://mirror.local/ubuntu/
stub_start = true

[package]
version = v2.4.6
`))
    defer dir.Remove()

    c := parse(t, "-c", dir.Join("conf.ini"), "--deb-version", "v1.2.3")
    assert.NilError(t, c.Resolve())

    assert.Equal(t, c.BaseDir, "/srv/toolchain")
    assert.Equal(t, c.JailDir, "/srv/toolchain/jails/build")
    assert.Equal(t, c.Mirror, "http://mirror.local/ubuntu/")
    assert.Assert(t, c.StubStart)
    // Options win over the config file
    assert.Equal(t, c.Version, "1.2-3")
}

func TestMissingExplicitConfig(t *testing.T) {
    c := &Cfgs{}
    c.InitOpt()
    c.AddOpts(testComponents)
    remaining, err := c.Opt.Parse([]string{"--conf", "/nonexistent/conf.ini"})
    assert.NilError(t, c.ActOpts(remaining, err))
    _, err = c.InitCfg()
    assert.ErrorContains(t, err, "Cannot open config file")
}

func TestNothingToDo(t *testing.T) {
    c := parse(t, "--base-dir", "/srv/toolchain")
    assert.NilError(t, c.Resolve())
    assert.Assert(t, !c.AnythingToDo())
}
