// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package archive creates and extracts compressed tarballs.
package archive

import (
    "github.com/dsnet/compress/bzip2"
    "github.com/klauspost/compress/gzip"
    "github.com/klauspost/compress/zstd"
    "github.com/ulikunitz/xz"
    "archive/tar"
    "bufio"
    "bytes"
    "fmt"
    "io"
    "os"
    "path/filepath"
    str "strings"
)

// Compression struct
type Compression int

const (
    None Compression = iota
    Bzip2
    Gzip
    Xz
    Zstd
)

func (c Compression) String() string {
    switch c {
        case Bzip2:
            return "bzip2"
        case Gzip:
            return "gzip"
        case Xz:
            return "xz"
        case Zstd:
            return "zstd"
    }
    return "none"
}

var magics = []struct {
    magic []byte
    c Compression
}{
    {[]byte("BZh"), Bzip2},
    {[]byte{0x1f, 0x8b}, Gzip},
    {[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, Xz},
    {[]byte{0x28, 0xb5, 0x2f, 0xfd}, Zstd},
}

// Detect the compression of a stream from its first bytes
func Detect(header []byte) Compression {
    for _, m := range magics {
        if bytes.HasPrefix(header, m.magic) {
            return m.c
        }
    }
    return None
}

// Wrap r in a decompressor matching its contents
func decompress(r io.Reader) (io.Reader, func(), error) {
    br := bufio.NewReader(r)
    header, _ := br.Peek(6)

    switch Detect(header) {
        case Bzip2:
            zr, err := bzip2.NewReader(br, nil)
            if err != nil {
                return nil, nil, err
            }
            return zr, func() { zr.Close() }, nil
        case Gzip:
            zr, err := gzip.NewReader(br)
            if err != nil {
                return nil, nil, err
            }
            return zr, func() { zr.Close() }, nil
        case Xz:
            zr, err := xz.NewReader(br)
            if err != nil {
                return nil, nil, err
            }
            return zr, func() {}, nil
        case Zstd:
            zr, err := zstd.NewReader(br)
            if err != nil {
                return nil, nil, err
            }
            return zr, zr.Close, nil
    }
    return br, func() {}, nil
}

// Resolve name below dest, refusing anything that escapes it
func safeJoin(dest string, name string) (string, error) {
    target := filepath.Join(dest, name)
    rel, err := filepath.Rel(dest, target)
    if err != nil || rel == ".." || str.HasPrefix(rel, ".." + string(filepath.Separator)) {
        return "", fmt.Errorf("archive entry %s escapes %s", name, dest)
    }
    return target, nil
}

// Refuse to reach target through a symlink below dest
func checkParents(dest string, target string) error {
    rel, err := filepath.Rel(dest, filepath.Dir(target))
    if err != nil {
        return err
    }
    if rel == "." {
        return nil
    }
    cur := dest
    for _, part := range str.Split(rel, string(filepath.Separator)) {
        cur = filepath.Join(cur, part)
        info, err := os.Lstat(cur)
        if os.IsNotExist(err) {
            return nil
        } else if err != nil {
            return err
        }
        if info.Mode()&os.ModeSymlink != 0 {
            return fmt.Errorf("archive entry %s escapes %s through symlink %s", target, dest, cur)
        }
    }
    return nil
}

// Symlinks must be relative and point somewhere below dest
func checkLink(dest string, target string, linkname string) error {
    if filepath.IsAbs(linkname) {
        return fmt.Errorf("archive symlink %s -> %s escapes %s", target, linkname, dest)
    }
    rel, err := filepath.Rel(dest, filepath.Join(filepath.Dir(target), linkname))
    if err != nil || rel == ".." || str.HasPrefix(rel, ".." + string(filepath.Separator)) {
        return fmt.Errorf("archive symlink %s -> %s escapes %s", target, linkname, dest)
    }
    return nil
}

// Extract a (possibly compressed) tarball into dest
func Extract(archivePath string, dest string) error {
    var err error

    f, err := os.Open(archivePath)
    if err != nil {
        return fmt.Errorf("Error %w opening %s", err, archivePath)
    }
    defer f.Close()

    r, closeFn, err := decompress(f)
    if err != nil {
        return fmt.Errorf("Error %w decompressing %s", err, archivePath)
    }
    defer closeFn()

    err = os.MkdirAll(dest, 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, dest)
    }

    tr := tar.NewReader(r)
    for {
        hdr, err := tr.Next()
        if err == io.EOF {
            break
        }
        if err != nil {
            return fmt.Errorf("Error %w reading %s", err, archivePath)
        }

        target, err := safeJoin(dest, hdr.Name)
        if err != nil {
            return err
        }
        err = checkParents(dest, target)
        if err != nil {
            return err
        }
        mode := os.FileMode(hdr.Mode).Perm()

        switch hdr.Typeflag {
            case tar.TypeDir:
                err = os.MkdirAll(target, 0755)
                if err == nil {
                    err = os.Chmod(target, mode)
                }
            case tar.TypeReg:
                err = writeFile(target, tr, mode)
            case tar.TypeSymlink:
                err = checkLink(dest, target, hdr.Linkname)
                if err != nil {
                    return err
                }
                err = os.MkdirAll(filepath.Dir(target), 0755)
                if err == nil {
                    os.Remove(target)
                    err = os.Symlink(hdr.Linkname, target)
                }
            case tar.TypeLink:
                var src string
                src, err = safeJoin(dest, hdr.Linkname)
                if err == nil {
                    err = checkParents(dest, src)
                }
                if err == nil {
                    os.Remove(target)
                    err = os.Link(src, target)
                }
            default:
                // Devices and fifos have no place in a package tarball
                continue
        }
        if err != nil {
            return fmt.Errorf("Error %w extracting %s from %s", err, hdr.Name, archivePath)
        }
    }

    return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
    err := os.MkdirAll(filepath.Dir(target), 0755)
    if err != nil {
        return err
    }
    // Replace a symlink rather than write through it
    if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
        err = os.Remove(target)
        if err != nil {
            return err
        }
    }
    out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
    if err != nil {
        return err
    }
    _, err = io.Copy(out, r)
    if err != nil {
        out.Close()
        return err
    }
    err = out.Close()
    if err != nil {
        return err
    }
    // The umask applies to OpenFile
    return os.Chmod(target, mode)
}

// Create a .tar.bz2 at archivePath holding paths (relative to root),
// directories included recursively
func Create(archivePath string, root string, paths []string) error {
    var err error

    out, err := os.Create(archivePath)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, archivePath)
    }
    defer out.Close()

    zw, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: bzip2.BestCompression})
    if err != nil {
        return fmt.Errorf("Error %w starting compression of %s", err, archivePath)
    }
    tw := tar.NewWriter(zw)

    for _, p := range paths {
        err = addTree(tw, root, p)
        if err != nil {
            return fmt.Errorf("Error %w adding %s to %s", err, p, archivePath)
        }
    }

    err = tw.Close()
    if err != nil {
        return fmt.Errorf("Error %w finishing %s", err, archivePath)
    }
    err = zw.Close()
    if err != nil {
        return fmt.Errorf("Error %w finishing %s", err, archivePath)
    }
    return out.Close()
}

// Add root/rel and everything below it
func addTree(tw *tar.Writer, root string, rel string) error {
    return filepath.Walk(filepath.Join(root, rel), func(path string, info os.FileInfo, err error) error {
        if err != nil {
            return err
        }
        name, err := filepath.Rel(root, path)
        if err != nil {
            return err
        }
        name = filepath.ToSlash(name)

        var link string
        if info.Mode()&os.ModeSymlink != 0 {
            link, err = os.Readlink(path)
            if err != nil {
                return err
            }
        }
        hdr, err := tar.FileInfoHeader(info, link)
        if err != nil {
            return err
        }
        hdr.Name = name
        if info.IsDir() {
            hdr.Name += "/"
        }
        err = tw.WriteHeader(hdr)
        if err != nil {
            return err
        }

        if !info.Mode().IsRegular() {
            return nil
        }
        f, err := os.Open(path)
        if err != nil {
            return err
        }
        defer f.Close()
        _, err = io.Copy(tw, f)
        return err
    })
}
