// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package deb stages the final package and hands it to the packager in the
// deployment jail.
package deb

import (
    "github.com/neverware/client-toolchain/archive"
    "github.com/neverware/client-toolchain/cfg"
    "github.com/neverware/client-toolchain/util"
    log "github.com/sirupsen/logrus"
    "context"
    "fmt"
    "os"
    "path/filepath"
)

// Maintainer scripts that must be executable
var lifecycleScripts = []string{"preinst", "postinst", "prerm", "postrm"}

const lifecycleMode = 0775

// Assembler struct
type Assembler struct {
    Exec util.Executor
    Cfg *cfg.Cfgs
}

func NewAssembler(e util.Executor, c *cfg.Cfgs) *Assembler {
    return &Assembler{Exec: e, Cfg: c}
}

// Copy the maintainer scripts into debianDir and make them executable
func copyLifecycle(lifecycleDir string, debianDir string) error {
    entries, err := os.ReadDir(lifecycleDir)
    if os.IsNotExist(err) {
        log.Warnf("%s does not exist, packaging without maintainer scripts", lifecycleDir)
        return nil
    } else if err != nil {
        return fmt.Errorf("Error %w listing %s", err, lifecycleDir)
    }

    for _, e := range entries {
        if !e.Type().IsRegular() {
            continue
        }
        err = util.CopyFile(filepath.Join(lifecycleDir, e.Name()), filepath.Join(debianDir, e.Name()))
        if err != nil {
            return err
        }
    }

    for _, name := range lifecycleScripts {
        path := filepath.Join(debianDir, name)
        if _, err := os.Stat(path); os.IsNotExist(err) {
            continue
        }
        err = os.Chmod(path, lifecycleMode)
        if err != nil {
            return fmt.Errorf("Error %w making %s executable", err, path)
        }
    }
    return nil
}

// Lay out name-version/ under tmp: debian-binary, DEBIAN/ and the payload
func (a *Assembler) stage(tmp string, buildDirName string, manifest Manifest, jailPath string) error {
    var err error
    c := a.Cfg

    buildDir := filepath.Join(tmp, buildDirName)
    debianDir := filepath.Join(buildDir, "DEBIAN")
    err = os.MkdirAll(debianDir, 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, debianDir)
    }
    log.Infof("Building deb file at %s", buildDir)

    err = os.WriteFile(filepath.Join(buildDir, "debian-binary"), []byte("2.0\n"), 0644)
    if err != nil {
        return fmt.Errorf("Error %w writing debian-binary", err)
    }

    controlFile, err := os.Create(filepath.Join(debianDir, "control"))
    if err != nil {
        return fmt.Errorf("Error %w creating control file", err)
    }
    err = manifest.Encode(controlFile)
    if err != nil {
        controlFile.Close()
        return err
    }
    err = controlFile.Close()
    if err != nil {
        return fmt.Errorf("Error %w writing control file", err)
    }

    err = copyLifecycle(c.LifecycleDir(), debianDir)
    if err != nil {
        return err
    }

    // The build scripts install into a fixed prefix inside the jail
    payload := filepath.Join(jailPath, c.PayloadDir())
    dest := filepath.Join(buildDir, c.PayloadDir())
    err = os.MkdirAll(filepath.Dir(dest), 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, filepath.Dir(dest))
    }
    err = util.CopyTree(payload, dest)
    if err != nil {
        return fmt.Errorf("Error %w copying built payload", err)
    }
    return nil
}

// Stage and archive the package, then run the packager in the deployment
// jail. Returns the path of the archive handed to the packager.
func (a *Assembler) Assemble(ctx context.Context, name string, version string, dependencyList string, jailPath string) (string, error) {
    var err error
    c := a.Cfg

    depends, err := ReadDepends(dependencyList)
    if err != nil {
        return "", err
    }
    manifest := NewManifest(name, version, c.PackageArch, depends, c.Maintainer, c.Description)

    if _, err := os.Stat(c.DeployJailDir); err != nil {
        return "", fmt.Errorf("deployment jail %s is not usable: %w", c.DeployJailDir, err)
    }

    tmp, err := os.MkdirTemp("", name + "-")
    if err != nil {
        return "", fmt.Errorf("Error %w creating staging directory", err)
    }
    defer os.RemoveAll(tmp)

    buildDirName := fmt.Sprintf("%s-%s", name, version)
    err = a.stage(tmp, buildDirName, manifest, jailPath)
    if err != nil {
        return "", err
    }

    // Bundle up the build directory
    tarName := buildDirName + ".tar.bz2"
    built := filepath.Join(tmp, tarName)
    err = archive.Create(built, tmp, []string{buildDirName})
    if err != nil {
        return "", err
    }

    wwwDir := filepath.Join(c.DeployJailDir, "www")
    err = os.MkdirAll(wwwDir, 0755)
    if err != nil {
        return "", fmt.Errorf("Error %w creating %s", err, wwwDir)
    }
    tarDst := filepath.Join(wwwDir, tarName)
    log.Infof("Moving %s to %s", built, tarDst)
    err = util.CopyFile(built, tarDst)
    if err != nil {
        return "", err
    }

    err = util.Chroot(ctx, a.Exec, c.DeployJailDir, c.Packager, "--tar-name", tarName)
    if err != nil {
        return tarDst, err
    }
    return tarDst, nil
}
