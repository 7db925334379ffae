// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package deb

import (
    "github.com/neverware/client-toolchain/archive"
    "github.com/neverware/client-toolchain/cfg"
    "github.com/neverware/client-toolchain/util/exectest"
    "bytes"
    "context"
    "errors"
    "os"
    "path/filepath"
    "testing"

    "gotest.tools/v3/assert"
    "gotest.tools/v3/assert/cmp"
    "gotest.tools/v3/fs"
)

func TestRenderDepends(t *testing.T) {
    assert.Equal(t, RenderDepends("libfoo libbar"), "libfoo, libbar")
    assert.Equal(t, RenderDepends("libfoo  libbar\nlibbaz\n"), "libfoo, libbar, libbaz")
    assert.Equal(t, RenderDepends("  \n"), "")
}

func TestReadDepends(t *testing.T) {
    dir := fs.NewDir(t, "deps", fs.WithFile("dependencies.list", "libfoo libbar\n"))
    defer dir.Remove()

    got, err := ReadDepends(dir.Join("dependencies.list"))
    assert.NilError(t, err)
    assert.Equal(t, got, "libfoo, libbar")

    _, err = ReadDepends(dir.Join("missing.list"))
    assert.ErrorContains(t, err, "reading dependency list")
}

func TestManifestEncode(t *testing.T) {
    m := NewManifest("neverware-virt-viewer", "1.2-3", "i386", "libfoo, libbar", "neverware <it@neverware.com>", "Neverware's flavor of virt-viewer.")
    var buf bytes.Buffer
    assert.NilError(t, m.Encode(&buf))

    out := buf.String()
    for _, line := range []string{
        "Package: neverware-virt-viewer\n",
        "Version: 1.2-3\n",
        "Section: base\n",
        "Priority: optional\n",
        "Architecture: i386\n",
        "Depends: libfoo, libbar\n",
        "Maintainer: neverware <it@neverware.com>\n",
        "Description: Neverware's flavor of virt-viewer.\n",
    } {
        assert.Assert(t, cmp.Contains(out, line))
    }
}

type env struct {
    base *fs.Dir
    jail *fs.Dir
    deploy *fs.Dir
    cfg *cfg.Cfgs
}

func setup(t *testing.T) env {
    base := fs.NewDir(t, "toolchain",
        fs.WithDir("resources", fs.WithDir("scripts", fs.WithFile("dependencies.list", "libfoo libbar\n"))),
        fs.WithDir("apt_configs", fs.WithDir("neverware_virt_viewer",
            fs.WithFile("postinst", "#!/bin/sh\n", fs.WithMode(0644)),
            fs.WithFile("prerm", "#!/bin/sh\n", fs.WithMode(0600)),
            fs.WithFile("conffiles", "/opt/neverware/etc/viewer.conf\n", fs.WithMode(0644)))))
    jail := fs.NewDir(t, "build_chroot",
        fs.WithDir("opt", fs.WithDir("neverware", fs.WithDir("bin",
            fs.WithFile("remote-viewer", "ELF", fs.WithMode(0755))))))
    deploy := fs.NewDir(t, "precise", fs.WithDir("www"))

    c := &cfg.Cfgs{
        BaseDir: base.Path(),
        DeployJailDir: deploy.Path(),
        PackageName: "neverware-virt-viewer",
        PackageArch: "i386",
        Maintainer: "neverware <it@neverware.com>",
        Description: "Neverware's flavor of virt-viewer.",
        Packager: "./neverware_deb_packager.py",
    }
    return env{base: base, jail: jail, deploy: deploy, cfg: c}
}

func (e env) remove() {
    e.base.Remove()
    e.jail.Remove()
    e.deploy.Remove()
}

func TestAssemble(t *testing.T) {
    e := setup(t)
    defer e.remove()

    rec := &exectest.Recorder{}
    a := NewAssembler(rec, e.cfg)
    tarball, err := a.Assemble(context.Background(), "neverware-virt-viewer", "1.2-3",
        e.base.Join("resources", "scripts", "dependencies.list"), e.jail.Path())
    assert.NilError(t, err)
    assert.Equal(t, tarball, e.deploy.Join("www", "neverware-virt-viewer-1.2-3.tar.bz2"))

    assert.DeepEqual(t, rec.Commands(), []string{
        "chroot " + e.deploy.Path() + " ./neverware_deb_packager.py --tar-name neverware-virt-viewer-1.2-3.tar.bz2",
    })

    out := fs.NewDir(t, "out")
    defer out.Remove()
    assert.NilError(t, archive.Extract(tarball, out.Path()))
    root := out.Join("neverware-virt-viewer-1.2-3")

    control, err := os.ReadFile(filepath.Join(root, "DEBIAN", "control"))
    assert.NilError(t, err)
    assert.Assert(t, cmp.Contains(string(control), "Depends: libfoo, libbar\n"))
    assert.Assert(t, cmp.Contains(string(control), "Version: 1.2-3\n"))

    for _, name := range []string{"postinst", "prerm"} {
        info, err := os.Stat(filepath.Join(root, "DEBIAN", name))
        assert.NilError(t, err)
        assert.Equal(t, info.Mode().Perm(), os.FileMode(0775), name)
    }
    // Other files are copied but keep their mode
    info, err := os.Stat(filepath.Join(root, "DEBIAN", "conffiles"))
    assert.NilError(t, err)
    assert.Equal(t, info.Mode().Perm(), os.FileMode(0644))

    binary, err := os.ReadFile(filepath.Join(root, "opt", "neverware", "bin", "remote-viewer"))
    assert.NilError(t, err)
    assert.Equal(t, string(binary), "ELF")

    debianBinary, err := os.ReadFile(filepath.Join(root, "debian-binary"))
    assert.NilError(t, err)
    assert.Equal(t, string(debianBinary), "2.0\n")
}

func TestAssembleMissingPayload(t *testing.T) {
    e := setup(t)
    defer e.remove()
    assert.NilError(t, os.RemoveAll(e.jail.Join("opt")))

    rec := &exectest.Recorder{}
    _, err := NewAssembler(rec, e.cfg).Assemble(context.Background(), "neverware-virt-viewer", "1.2-3",
        e.base.Join("resources", "scripts", "dependencies.list"), e.jail.Path())
    assert.ErrorContains(t, err, "copying built payload")
    assert.Equal(t, len(rec.Calls), 0)
}

func TestAssembleMissingLifecycleScripts(t *testing.T) {
    e := setup(t)
    defer e.remove()
    assert.NilError(t, os.RemoveAll(e.base.Join("apt_configs")))

    rec := &exectest.Recorder{}
    _, err := NewAssembler(rec, e.cfg).Assemble(context.Background(), "neverware-virt-viewer", "1.2-3",
        e.base.Join("resources", "scripts", "dependencies.list"), e.jail.Path())
    assert.NilError(t, err)
    assert.Equal(t, len(rec.Calls), 1)
}

func TestAssemblePackagerFails(t *testing.T) {
    e := setup(t)
    defer e.remove()

    rec := &exectest.Recorder{Hook: func(c exectest.Call) error {
        return errors.New("exit status 2")
    }}
    _, err := NewAssembler(rec, e.cfg).Assemble(context.Background(), "neverware-virt-viewer", "1.2-3",
        e.base.Join("resources", "scripts", "dependencies.list"), e.jail.Path())
    assert.ErrorContains(t, err, "exit status 2")
}
