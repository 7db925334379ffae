// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package jail creates the debootstrapped chroot the client toolchain is
// built in.
package jail

import (
    "github.com/neverware/client-toolchain/cfg"
    "github.com/neverware/client-toolchain/util"
    log "github.com/sirupsen/logrus"
    "context"
    "fmt"
    "os"
    "path/filepath"
)

// Jail-relative paths
const (
    sourcesList = "etc/apt/sources.list"
    updateScript = "/resources/scripts/update_apt.sh"
    startPath = "sbin/start"
)

// Provisioner struct
type Provisioner struct {
    Exec util.Executor
    Cfg *cfg.Cfgs
}

func New(e util.Executor, c *cfg.Cfgs) *Provisioner {
    return &Provisioner{Exec: e, Cfg: c}
}

// Whether a jail already exists at jailPath
func Exists(jailPath string) bool {
    info, err := os.Stat(jailPath)
    return err == nil && info.IsDir()
}

// Create the jail unless a directory is already there. An existing jail is
// never inspected; delete it to force a rebuild.
func (p *Provisioner) Ensure(ctx context.Context, jailPath string) error {
    if Exists(jailPath) {
        log.Infof("Using existing chroot jail %s, delete it to rebuild", jailPath)
        return nil
    }
    log.Infof("Could not find %s, making new chroot jail", jailPath)
    return p.Create(ctx, jailPath)
}

// Bootstrap, seed and update a jail at jailPath
func (p *Provisioner) Create(ctx context.Context, jailPath string) error {
    var err error
    c := p.Cfg

    err = util.RequireTool(p.Exec, "debootstrap")
    if err != nil {
        return fmt.Errorf("%w to make chroot jail", err)
    }
    hostArch, err := util.HostArch()
    if err == nil && !util.NativeFor(hostArch, c.JailArch) {
        log.Warnf("Host is %s, debootstrap of %s may need binfmt support", hostArch, c.JailArch)
    }

    // Bootstrap the actual jail
    log.Infof("Creating chroot jail in %s for %s %s...", jailPath, c.Suite, c.JailArch)
    err = p.Exec.Run(ctx, "", "debootstrap",
        "--variant=" + c.Variant,
        "--arch=" + c.JailArch,
        c.Suite,
        jailPath,
        c.Mirror)
    if err != nil {
        return err
    }

    // Now we copy over all the resources
    for _, dir := range []string{c.ResourcesDir(), c.BuildScriptsDir()} {
        dest := filepath.Join(jailPath, filepath.Base(dir))
        log.Infof("Copying %s to %s", dir, dest)
        err = util.CopyTree(dir, dest)
        if err != nil {
            return fmt.Errorf("Error %w seeding chroot jail", err)
        }
    }

    // Add our sources onto the jail's
    err = util.AppendFile(filepath.Join(c.ResourcesDir(), sourcesList), filepath.Join(jailPath, sourcesList))
    if err != nil {
        return err
    }

    if c.StubStart {
        err = StubStart(jailPath)
        if err != nil {
            return err
        }
    }

    // update_apt.sh is run from inside the jail
    return util.Chroot(ctx, p.Exec, jailPath, updateScript)
}

// Replace the jail's /sbin/start with a no-op so package post-install
// scripts (dbus's, for one) don't try to start services in the chroot.
// The real launcher is kept as start.bak; a jail with start.bak is left alone.
func StubStart(jailPath string) error {
    start := filepath.Join(jailPath, startPath)
    backup := start + ".bak"

    if _, err := os.Stat(backup); err == nil {
        log.Debugf("%s already stubbed", start)
        return nil
    }
    if _, err := os.Stat(start); os.IsNotExist(err) {
        log.Warnf("%s does not exist, not stubbing it", start)
        return nil
    }

    err := os.Rename(start, backup)
    if err != nil {
        return fmt.Errorf("Error %w moving %s aside", err, start)
    }
    err = os.WriteFile(start, []byte("\n"), 0755)
    if err != nil {
        return fmt.Errorf("Error %w writing stub %s", err, start)
    }
    return os.Chmod(start, 0755)
}
