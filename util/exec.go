// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package util

import (
    log "github.com/sirupsen/logrus"
    "context"
    "errors"
    "fmt"
    "io"
    "os/exec"
    "path/filepath"
    "bufio"
    "sync"
    "time"
)

// Runs external programs on the host
type Executor interface {
    // Run name with args in dir ("" inherits ours), streaming its output
    Run(ctx context.Context, dir string, name string, args ...string) error
    // Find a program on PATH
    LookPath(name string) (string, error)
}

// A required external tool is not installed
type ToolMissingError struct {
    Tool string
}

func (e *ToolMissingError) Error() string {
    return fmt.Sprintf("%s is required but was not found in PATH", e.Tool)
}

// An external command exited unsuccessfully
type ExternalProcessError struct {
    Args []string
    Err error
}

func (e *ExternalProcessError) Error() string {
    return fmt.Sprintf("Error %v while executing %v", e.Err, e.Args)
}

func (e *ExternalProcessError) Unwrap() error {
    return e.Err
}

// Exit status of the command, or -1 if it never produced one
func (e *ExternalProcessError) ExitCode() int {
    var exitErr *exec.ExitError
    if errors.As(e.Err, &exitErr) {
        return exitErr.ExitCode()
    }
    return -1
}

// Executor backed by os/exec
type Host struct{}

func (Host) LookPath(name string) (string, error) {
    path, err := exec.LookPath(name)
    if err != nil {
        return "", &ToolMissingError{Tool: name}
    }
    return path, nil
}

// Longest line logged; anything past it is discarded
const maxLine = 1024 * 1024

// How long Wait keeps reading output after the process is gone
const waitDelay = 10 * time.Second

// Stream lines from r into the log. r is always drained so the writer
// never blocks on us.
func streamLines(wg *sync.WaitGroup, r io.Reader, entry *log.Entry, level log.Level) {
    defer wg.Done()

    scanner := bufio.NewScanner(r)
    scanner.Buffer(make([]byte, 64*1024), maxLine)
    for scanner.Scan() {
        entry.Log(level, scanner.Text())
    }
    if err := scanner.Err(); err != nil {
        entry.Warnf("Output no longer logged: %s", err)
        io.Copy(io.Discard, r)
    }
}

func (Host) Run(ctx context.Context, dir string, name string, args ...string) error {
    var err error

    cmd := exec.CommandContext(ctx, name, args...)
    cmd.Dir = dir
    // Descendants of a killed chroot may keep the pipes open
    cmd.WaitDelay = waitDelay
    entry := log.WithField("cmd", filepath.Base(name))
    log.Debugf("Executing %v", cmd.Args)

    // exec copies into the pipes itself, so Wait (and WaitDelay) covers it
    outR, outW := io.Pipe()
    errR, errW := io.Pipe()
    cmd.Stdout = outW
    cmd.Stderr = errW

    var wg sync.WaitGroup
    wg.Add(2)
    go streamLines(&wg, outR, entry, log.InfoLevel)
    go streamLines(&wg, errR, entry, log.WarnLevel)

    err = cmd.Run()
    outW.Close()
    errW.Close()
    wg.Wait()
    if err != nil {
        return &ExternalProcessError{Args: cmd.Args, Err: err}
    }
    return nil
}

// Run a command inside the root filesystem at root
func Chroot(ctx context.Context, e Executor, root string, command string, args ...string) error {
    return e.Run(ctx, "", "chroot", append([]string{root, command}, args...)...)
}

// Make sure a tool exists before we try to use it
func RequireTool(e Executor, name string) error {
    _, err := e.LookPath(name)
    if err != nil {
        var missing *ToolMissingError
        if errors.As(err, &missing) {
            return err
        }
        return &ToolMissingError{Tool: name}
    }
    return nil
}
