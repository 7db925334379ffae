// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package fetch keeps local copies of remote artifacts in line with the
// digests recorded in a checksum store.
package fetch

import (
    "github.com/neverware/client-toolchain/archive"
    "github.com/neverware/client-toolchain/checksum"
    log "github.com/sirupsen/logrus"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "errors"
    "fmt"
    "io"
    "os"
)

// Digests are computed a chunk at a time so large tarballs are never buffered
const chunkSize = 1 << 20

// Downloads a URL to a local path
type Downloader interface {
    Download(ctx context.Context, url string, dest string) error
}

// A local artifact does not match its recorded digest
type IntegrityMismatchError struct {
    Name string
    Expected string
    Got string
}

func (e *IntegrityMismatchError) Error() string {
    return fmt.Sprintf("checksums %s (expected) and %s (got) don't match for %s", e.Expected, e.Got, e.Name)
}

// SHA-1 of a file as hex. Only used to notice stale downloads, not for security.
func Digest(path string) (string, error) {
    f, err := os.Open(path)
    if err != nil {
        return "", fmt.Errorf("Error %w opening %s", err, path)
    }
    defer f.Close()

    h := sha1.New()
    _, err = io.CopyBuffer(h, f, make([]byte, chunkSize))
    if err != nil {
        return "", fmt.Errorf("Error %w reading %s", err, path)
    }
    return hex.EncodeToString(h.Sum(nil)), nil
}

// Fetcher struct
type Fetcher struct {
    Store *checksum.Store
    Downloader Downloader
}

// Check the local copy against the store
func (f *Fetcher) verify(name string, localPath string) error {
    log.Infof("Calculating checksum of %s. This could take a while", localPath)
    got, err := Digest(localPath)
    if err != nil {
        return err
    }
    expected, err := f.Store.Get(name)
    if err != nil {
        return err
    }
    if got != expected {
        return &IntegrityMismatchError{Name: name, Expected: expected, Got: got}
    }
    return nil
}

// Download and record the new digest
func (f *Fetcher) refresh(ctx context.Context, name string, localPath string, url string) error {
    var err error

    log.Infof("Downloading %s from %s...", name, url)
    err = f.Downloader.Download(ctx, url, localPath)
    if err != nil {
        return fmt.Errorf("Error %w downloading %s", err, name)
    }

    digest, err := Digest(localPath)
    if err != nil {
        return err
    }
    f.Store.Set(name, digest)
    err = f.Store.Persist()
    if err != nil {
        return err
    }
    log.Debugf("Recorded checksum %s for %s in %s", digest, name, f.Store.Path())
    return nil
}

// Make sure localPath holds the artifact, downloading it if it is missing
// or does not match the recorded digest
func (f *Fetcher) EnsureFresh(ctx context.Context, name string, localPath string, url string) error {
    _, err := os.Stat(localPath)
    if os.IsNotExist(err) {
        return f.refresh(ctx, name, localPath, url)
    } else if err != nil {
        return fmt.Errorf("Error %w checking %s", err, localPath)
    }

    err = f.verify(name, localPath)
    if err == nil {
        log.Infof("%s is up to date", localPath)
        return nil
    }

    var mismatch *IntegrityMismatchError
    switch {
        case errors.As(err, &mismatch):
            log.Warnf("%s, downloading %s", mismatch, localPath)
        case checksum.IsMissing(err):
            log.Warnf("%s, downloading %s", err, localPath)
        default:
            return err
    }
    return f.refresh(ctx, name, localPath, url)
}

// Make the artifact fresh then extract it into destDir
func (f *Fetcher) Install(ctx context.Context, name string, localPath string, url string, destDir string) error {
    err := f.EnsureFresh(ctx, name, localPath, url)
    if err != nil {
        return err
    }

    log.Infof("Extracting %s into %s", localPath, destDir)
    err = archive.Extract(localPath, destDir)
    if err != nil {
        return fmt.Errorf("Error %w installing %s", err, name)
    }
    return nil
}
