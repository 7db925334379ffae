// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package build

import (
    "github.com/neverware/client-toolchain/archive"
    "github.com/neverware/client-toolchain/cfg"
    "github.com/neverware/client-toolchain/util"
    log "github.com/sirupsen/logrus"
    "context"
    "fmt"
    "os"
    "path/filepath"
    str "strings"
)

// In-jail helpers for collecting client debs
const (
    downloadScript = "/resources/scripts/download_client_debs.sh"
    downloadList = "/resources/downloads.list"
    clientDebsArchive = "client_debs.tar.bz2"
)

// Creates the jail on demand
type Provisioner interface {
    Ensure(ctx context.Context, jailPath string) error
}

// Fetches, verifies and unpacks an artifact
type Installer interface {
    Install(ctx context.Context, name string, localPath string, url string, destDir string) error
}

// Produces the final package
type Assembler interface {
    Assemble(ctx context.Context, name string, version string, dependencyList string, jailPath string) (string, error)
}

// Builder struct
type Builder struct {
    Exec util.Executor
    Cfg *cfg.Cfgs
    Jail Provisioner
    Artifacts Installer
    Packager Assembler

    dispatch map[Component]func(ctx context.Context) error
}

// Create a builder with its component dispatch table
func NewBuilder(e util.Executor, c *cfg.Cfgs, p Provisioner, i Installer, a Assembler) *Builder {
    b := &Builder{Exec: e, Cfg: c, Jail: p, Artifacts: i, Packager: a}
    b.dispatch = map[Component]func(ctx context.Context) error{
        SpiceGtk: func(ctx context.Context) error { return b.runScript(ctx, SpiceGtk) },
        VirtViewer: func(ctx context.Context) error { return b.runScript(ctx, VirtViewer) },
        ClientDebs: b.installClientDebs,
        FinalPackage: b.assemble,
    }
    return b
}

// Build a single component
func (b *Builder) Build(ctx context.Context, comp Component) error {
    fn, ok := b.dispatch[comp]
    if !ok {
        return fmt.Errorf("don't know how to build %s", comp)
    }
    log.Infof("Executing %s", comp)
    err := fn(ctx)
    if err != nil {
        return fmt.Errorf("%w building %s", err, comp)
    }
    return nil
}

// Arguments handed to every script
func (b *Builder) scriptArgs(args ...string) []string {
    if b.Cfg.BuildPrefix != "" {
        args = append(args, b.Cfg.BuildPrefix)
    }
    return args
}

// Run a component's build script inside the jail
func (b *Builder) runScript(ctx context.Context, comp Component) error {
    var err error
    jailPath := b.Cfg.JailDir

    err = b.Jail.Ensure(ctx, jailPath)
    if err != nil {
        return err
    }

    script, _ := comp.Script()
    if _, err := os.Stat(filepath.Join(jailPath, script)); err != nil {
        return fmt.Errorf("build script %s is missing from %s", script, jailPath)
    }
    return util.Chroot(ctx, b.Exec, jailPath, script, b.scriptArgs()...)
}

// Fetch the prebuilt client debs into the apt repo
func (b *Builder) installClientDebs(ctx context.Context) error {
    c := b.Cfg
    return b.Artifacts.Install(ctx, c.ArtifactName, c.ArtifactPath, c.ArtifactURL, c.PackageIndexDir)
}

// Package what the build scripts installed
func (b *Builder) assemble(ctx context.Context) error {
    c := b.Cfg
    tarball, err := b.Packager.Assemble(ctx, c.PackageName, c.Version, c.DependencyList(), c.JailDir)
    if err != nil {
        return err
    }
    log.Infof("Packaged %s", tarball)
    return nil
}

// .deb files directly inside dir
func listDebs(dir string) ([]string, error) {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return nil, fmt.Errorf("Error %w listing %s", err, dir)
    }
    var debs []string
    for _, e := range entries {
        if e.Type().IsRegular() && str.HasSuffix(e.Name(), ".deb") {
            debs = append(debs, e.Name())
        }
    }
    return debs, nil
}

// Download the client debs inside the jail and tar up whatever arrived.
// A failed download still packages the debs that made it.
func (b *Builder) PackageClientDebs(ctx context.Context) (string, error) {
    var err error
    jailPath := b.Cfg.JailDir

    err = b.Jail.Ensure(ctx, jailPath)
    if err != nil {
        return "", err
    }

    err = util.Chroot(ctx, b.Exec, jailPath, downloadScript, b.scriptArgs(downloadList)...)
    if ctxErr := ctx.Err(); ctxErr != nil {
        return "", fmt.Errorf("%w while downloading client debs", ctxErr)
    }
    if err != nil {
        log.Warnf("Failed to download all packages (%s), tarring up what we can", err)
    }

    debDir := filepath.Join(jailPath, b.Cfg.ClientDebsDir())
    debs, err := listDebs(debDir)
    if err != nil {
        return "", err
    }
    if len(debs) == 0 {
        log.Warnf("No debs found in %s", debDir)
    }

    tarball := filepath.Join(debDir, clientDebsArchive)
    err = archive.Create(tarball, debDir, debs)
    if err != nil {
        return "", err
    }
    log.Infof("Packaged all client debs to: %s", tarball)
    return tarball, nil
}

// Copy the debs downloaded in the jail into the apt repo
func (b *Builder) CopyDependentDebs(ctx context.Context) error {
    debDir := filepath.Join(b.Cfg.JailDir, b.Cfg.ClientDebsDir())
    debs, err := listDebs(debDir)
    if err != nil {
        return err
    }

    err = os.MkdirAll(b.Cfg.PackageIndexDir, 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, b.Cfg.PackageIndexDir)
    }
    for _, deb := range debs {
        log.Debugf("Copying %s into %s", deb, b.Cfg.PackageIndexDir)
        err = util.CopyFile(filepath.Join(debDir, deb), filepath.Join(b.Cfg.PackageIndexDir, deb))
        if err != nil {
            return err
        }
    }
    log.Infof("Copied %d debs into %s", len(debs), b.Cfg.PackageIndexDir)
    return nil
}
