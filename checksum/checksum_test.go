// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package checksum

import (
    "errors"
    "os"
    "path/filepath"
    "testing"

    "gotest.tools/v3/assert"
    "gotest.tools/v3/fs"
)

func TestLoadMissingFile(t *testing.T) {
    dir := fs.NewDir(t, "checksum")
    defer dir.Remove()

    _, err := Load(dir.Join("checksums.cfg"))
    var cfgErr *ConfigError
    assert.Assert(t, errors.As(err, &cfgErr))
}

func TestLoadUnparsable(t *testing.T) {
    dir := fs.NewDir(t, "checksum", fs.WithFile("checksums.cfg", "[checksums\nclient_deb = abc\n"))
    defer dir.Remove()

    _, err := Load(dir.Join("checksums.cfg"))
    var cfgErr *ConfigError
    assert.Assert(t, errors.As(err, &cfgErr))
}

func TestGet(t *testing.T) {
    dir := fs.NewDir(t, "checksum", fs.WithFile("checksums.cfg", "[checksums]\nclient_deb = abc123\n"))
    defer dir.Remove()

    s, err := Load(dir.Join("checksums.cfg"))
    assert.NilError(t, err)

    digest, err := s.Get("client_deb")
    assert.NilError(t, err)
    assert.Equal(t, digest, "abc123")

    _, err = s.Get("other")
    assert.Assert(t, IsMissing(err))
}

func TestOpenReadBeforeWrite(t *testing.T) {
    dir := fs.NewDir(t, "checksum")
    defer dir.Remove()

    s := Open(dir.Join("checksums.cfg"))
    assert.Equal(t, s.Path(), dir.Join("checksums.cfg"))
    _, err := s.Get("client_deb")
    var cfgErr *ConfigError
    assert.Assert(t, errors.As(err, &cfgErr))
    assert.Equal(t, cfgErr.Path, s.Path())
}

func TestOpenWriteThenRead(t *testing.T) {
    dir := fs.NewDir(t, "checksum")
    defer dir.Remove()

    s := Open(dir.Join("checksums.cfg"))
    s.Set("client_deb", "deadbeef")
    digest, err := s.Get("client_deb")
    assert.NilError(t, err)
    assert.Equal(t, digest, "deadbeef")
}

func TestPersistRoundTrip(t *testing.T) {
    dir := fs.NewDir(t, "checksum")
    defer dir.Remove()
    path := dir.Join("sub", "checksums.cfg")

    s := Open(path)
    s.Set("client_deb", "0123456789abcdef0123456789abcdef01234567")
    s.Set("spice", "ffff")
    assert.NilError(t, s.Persist())

    loaded, err := Load(path)
    assert.NilError(t, err)
    assert.DeepEqual(t, loaded.Entries(), s.Entries())
    assert.DeepEqual(t, loaded.Entries(), map[string]string{
        "client_deb": "0123456789abcdef0123456789abcdef01234567",
        "spice": "ffff",
    })
}

func TestPersistKeepsOtherSections(t *testing.T) {
    dir := fs.NewDir(t, "checksum", fs.WithFile("checksums.cfg", "[meta]\nowner = ops\n\n[checksums]\nclient_deb = old\n"))
    defer dir.Remove()
    path := dir.Join("checksums.cfg")

    s, err := Load(path)
    assert.NilError(t, err)
    s.Set("client_deb", "new")
    assert.NilError(t, s.Persist())

    raw, err := os.ReadFile(path)
    assert.NilError(t, err)
    assert.Assert(t, len(raw) > 0)

    loaded, err := Load(path)
    assert.NilError(t, err)
    digest, err := loaded.Get("client_deb")
    assert.NilError(t, err)
    assert.Equal(t, digest, "new")
    assert.Equal(t, loaded.file.Section("meta").Key("owner").String(), "ops")

    // Nothing but the store itself is left behind in the directory
    entries, err := os.ReadDir(filepath.Dir(path))
    assert.NilError(t, err)
    assert.Equal(t, len(entries), 1)
}
