// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package util

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
)

// Copy a single file, keeping its permission bits
func CopyFile(src string, dst string) error {
    in, err := os.Open(src)
    if err != nil {
        return fmt.Errorf("Error %w opening %s", err, src)
    }
    defer in.Close()

    info, err := in.Stat()
    if err != nil {
        return fmt.Errorf("Error %w reading %s", err, src)
    }
    out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, dst)
    }
    _, err = io.Copy(out, in)
    if err != nil {
        out.Close()
        return fmt.Errorf("Error %w copying %s to %s", err, src, dst)
    }
    err = out.Close()
    if err != nil {
        return fmt.Errorf("Error %w writing %s", err, dst)
    }
    return os.Chmod(dst, info.Mode().Perm())
}

// Recursively copy src to dst, which must not exist yet
func CopyTree(src string, dst string) error {
    info, err := os.Stat(src)
    if err != nil {
        return fmt.Errorf("Error %w reading %s", err, src)
    }
    if !info.IsDir() {
        return fmt.Errorf("%s is not a directory", src)
    }
    if _, err := os.Lstat(dst); err == nil {
        return fmt.Errorf("%s already exists", dst)
    }

    return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
        if err != nil {
            return err
        }
        rel, err := filepath.Rel(src, path)
        if err != nil {
            return err
        }
        target := filepath.Join(dst, rel)

        switch {
            case info.IsDir():
                err = os.MkdirAll(target, 0755)
                if err != nil {
                    return fmt.Errorf("Error %w creating %s", err, target)
                }
                return os.Chmod(target, info.Mode().Perm())
            case info.Mode()&os.ModeSymlink != 0:
                link, err := os.Readlink(path)
                if err != nil {
                    return fmt.Errorf("Error %w reading link %s", err, path)
                }
                return os.Symlink(link, target)
            case info.Mode().IsRegular():
                return CopyFile(path, target)
        }
        // Sockets, devices etc. are skipped
        return nil
    })
}

// Append the contents of src onto dst
func AppendFile(src string, dst string) error {
    in, err := os.Open(src)
    if err != nil {
        return fmt.Errorf("Error %w opening %s", err, src)
    }
    defer in.Close()

    out, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
    if err != nil {
        return fmt.Errorf("Error %w opening %s", err, dst)
    }
    _, err = io.Copy(out, in)
    if err != nil {
        out.Close()
        return fmt.Errorf("Error %w appending %s to %s", err, src, dst)
    }
    return out.Close()
}
