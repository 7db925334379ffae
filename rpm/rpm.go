// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package rpm converts the host's debootstrap deb into an rpm with alien.
package rpm

import (
    "github.com/neverware/client-toolchain/util"
    log "github.com/sirupsen/logrus"
    "bufio"
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    str "strings"
)

const (
    sourcePkg = "debootstrap"
    alienPkg = "alien"
)

// Converter struct
type Converter struct {
    Exec util.Executor
    // Confirmation is read from In and the question written to Out
    In io.Reader
    Out io.Writer
    AssumeYes bool
    OutDir string
}

func New(e util.Executor, in io.Reader, out io.Writer, assumeYes bool, outDir string) *Converter {
    return &Converter{Exec: e, In: in, Out: out, AssumeYes: assumeYes, OutDir: outDir}
}

// Ask the operator whether to go ahead
func (c *Converter) confirm() bool {
    if c.AssumeYes {
        return true
    }
    fmt.Fprintf(c.Out, "We keep these packages in %s. You should install them. " +
        "Unless you lost them, then feel free to run this command. Type \"y\" to continue:\n", c.OutDir)
    answer, _ := bufio.NewReader(c.In).ReadString('\n')
    answer = str.ToLower(str.TrimSpace(answer))
    return str.HasPrefix(answer, "y")
}

// Names of the entries in dir
func listDir(dir string) (map[string]bool, error) {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return nil, fmt.Errorf("Error %w listing %s", err, dir)
    }
    out := make(map[string]bool)
    for _, e := range entries {
        out[e.Name()] = true
    }
    return out, nil
}

// Install alien unless dpkg already knows about it
func (c *Converter) ensureAlien(ctx context.Context, dir string) error {
    err := c.Exec.Run(ctx, dir, "dpkg", "-s", alienPkg)
    if err == nil {
        log.Infof("%s detected, proceeding", alienPkg)
        return nil
    }
    log.Infof("%s is not detected, installing", alienPkg)
    return c.Exec.Run(ctx, dir, "apt-get", "install", "-y", alienPkg)
}

// Download debootstrap, convert it and move the rpm to OutDir. Returns the
// rpm path, or "" if the operator declined.
func (c *Converter) Generate(ctx context.Context) (string, error) {
    var err error

    if !c.confirm() {
        log.Info("Not generating the debootstrap rpm")
        return "", nil
    }
    err = util.RequireTool(c.Exec, "apt-get")
    if err != nil {
        return "", fmt.Errorf("%w, can only generate debootstrap rpm on debian systems", err)
    }

    buildDir, err := os.MkdirTemp("", "debootstrap-rpm-")
    if err != nil {
        return "", fmt.Errorf("Error %w creating build directory", err)
    }
    defer os.RemoveAll(buildDir)

    err = c.Exec.Run(ctx, buildDir, "apt-get", "download", sourcePkg)
    if err != nil {
        return "", err
    }
    before, err := listDir(buildDir)
    if err != nil {
        return "", err
    }
    if len(before) != 1 {
        return "", fmt.Errorf("expected a single %s deb in %s, found %d files", sourcePkg, buildDir, len(before))
    }
    var deb string
    for name := range before {
        deb = name
    }

    err = c.ensureAlien(ctx, buildDir)
    if err != nil {
        return "", err
    }

    err = c.Exec.Run(ctx, buildDir, alienPkg, "--to-rpm", deb)
    if err != nil {
        return "", err
    }

    // alien has no option for the output name, so look for what appeared
    after, err := listDir(buildDir)
    if err != nil {
        return "", err
    }
    var created []string
    for name := range after {
        if !before[name] {
            created = append(created, name)
        }
    }
    if len(created) != 1 {
        return "", fmt.Errorf("expected one new file in %s after conversion, found %d", buildDir, len(created))
    }

    err = os.MkdirAll(c.OutDir, 0755)
    if err != nil {
        return "", fmt.Errorf("Error %w creating %s", err, c.OutDir)
    }
    out := filepath.Join(c.OutDir, created[0])
    err = util.CopyFile(filepath.Join(buildDir, created[0]), out)
    if err != nil {
        return "", err
    }
    log.Infof("Successfully converted %s into %s", deb, created[0])
    return out, nil
}
