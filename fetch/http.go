// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package fetch

import (
    log "github.com/sirupsen/logrus"
    "github.com/google/renameio"
    pb "gopkg.in/cheggaaa/pb.v1"
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "time"
)

// Client debs are large, give them a while
const downloadTimeout = 2 * time.Hour

// Downloader over HTTP(S)
type HTTPDownloader struct {
    Client *http.Client
    // Hide the progress bar
    Quiet bool
}

func NewHTTPDownloader(quiet bool) *HTTPDownloader {
    return &HTTPDownloader{
        Client: &http.Client{Timeout: downloadTimeout},
        Quiet: quiet,
    }
}

// Download url to dest; dest is only replaced once the whole body arrived
func (d *HTTPDownloader) Download(ctx context.Context, url string, dest string) error {
    var err error

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return err
    }
    resp, err := d.Client.Do(req)
    if err != nil {
        return err
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("download of %s did not succeed: %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
    }
    log.Debugf("%s response received, beginning download", resp.Status)

    dir := filepath.Dir(dest)
    err = os.MkdirAll(dir, 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, dir)
    }
    out, err := renameio.TempFile(dir, dest)
    if err != nil {
        return fmt.Errorf("Error %w creating temporary file for %s", err, dest)
    }
    defer out.Cleanup()

    bar := pb.New64(resp.ContentLength).SetUnits(pb.U_BYTES)
    if d.Quiet || resp.ContentLength <= 0 {
        bar.NotPrint = true
    }
    bar.Output = os.Stderr
    bar.ShowSpeed = true
    bar.Start()

    written, err := io.Copy(out, bar.NewProxyReader(resp.Body))
    bar.Finish()
    if err != nil {
        return err
    }

    if resp.ContentLength == -1 {
        log.Warnf("unknown length for %s", url)
    } else if written != resp.ContentLength {
        return fmt.Errorf("%s is not the right size: supposed to be %d, actually %d", url, resp.ContentLength, written)
    }

    err = out.CloseAtomicallyReplace()
    if err != nil {
        return fmt.Errorf("Error %w replacing %s", err, dest)
    }
    log.Debugf("Download complete: %s", dest)
    return nil
}
