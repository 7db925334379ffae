// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package rpm

import (
    "github.com/neverware/client-toolchain/util"
    "github.com/neverware/client-toolchain/util/exectest"
    "bytes"
    "context"
    "errors"
    "os"
    "path/filepath"
    str "strings"
    "testing"

    "gotest.tools/v3/assert"
    "gotest.tools/v3/assert/cmp"
)

// Behave like apt-get and alien by dropping files into the working dir
func fakeTools(alienInstalled bool) func(c exectest.Call) error {
    return func(c exectest.Call) error {
        line := c.String()
        switch {
        case line == "apt-get download debootstrap":
            return os.WriteFile(filepath.Join(c.Dir, "debootstrap_1.0.59_all.deb"), []byte("deb"), 0644)
        case line == "dpkg -s alien" && !alienInstalled:
            return errors.New("exit status 1")
        case str.HasPrefix(line, "alien --to-rpm"):
            return os.WriteFile(filepath.Join(c.Dir, "debootstrap-1.0.59-2.noarch.rpm"), []byte("rpm"), 0644)
        }
        return nil
    }
}

func TestGenerate(t *testing.T) {
    out := t.TempDir()
    rec := &exectest.Recorder{Hook: fakeTools(true)}
    c := New(rec, nil, nil, true, out)

    got, err := c.Generate(context.Background())
    assert.NilError(t, err)
    assert.Equal(t, got, filepath.Join(out, "debootstrap-1.0.59-2.noarch.rpm"))
    data, err := os.ReadFile(got)
    assert.NilError(t, err)
    assert.Equal(t, string(data), "rpm")

    assert.DeepEqual(t, rec.Commands(), []string{
        "apt-get download debootstrap",
        "dpkg -s alien",
        "alien --to-rpm debootstrap_1.0.59_all.deb",
    })
    // The scratch directory is gone
    _, err = os.Stat(rec.Calls[0].Dir)
    assert.Assert(t, os.IsNotExist(err))
}

func TestGenerateInstallsAlien(t *testing.T) {
    rec := &exectest.Recorder{Hook: fakeTools(false)}
    _, err := New(rec, nil, nil, true, t.TempDir()).Generate(context.Background())
    assert.NilError(t, err)
    assert.Equal(t, rec.Commands()[2], "apt-get install -y alien")
}

func TestGenerateDeclined(t *testing.T) {
    rec := &exectest.Recorder{}
    var prompt bytes.Buffer
    c := New(rec, str.NewReader("n\n"), &prompt, false, t.TempDir())

    got, err := c.Generate(context.Background())
    assert.NilError(t, err)
    assert.Equal(t, got, "")
    assert.Equal(t, len(rec.Calls), 0)
    assert.Assert(t, cmp.Contains(prompt.String(), "Type \"y\" to continue"))
}

func TestGenerateConfirmed(t *testing.T) {
    rec := &exectest.Recorder{Hook: fakeTools(true)}
    c := New(rec, str.NewReader("Yes\n"), &bytes.Buffer{}, false, t.TempDir())
    _, err := c.Generate(context.Background())
    assert.NilError(t, err)
    assert.Equal(t, len(rec.Calls), 3)
}

func TestGenerateWithoutAptGet(t *testing.T) {
    rec := &exectest.Recorder{Missing: map[string]bool{"apt-get": true}}
    _, err := New(rec, nil, nil, true, t.TempDir()).Generate(context.Background())

    var missing *util.ToolMissingError
    assert.Assert(t, errors.As(err, &missing))
    assert.ErrorContains(t, err, "debian systems")
    assert.Equal(t, len(rec.Calls), 0)
}

func TestGenerateTooManyFiles(t *testing.T) {
    rec := &exectest.Recorder{Hook: func(c exectest.Call) error {
        if str.HasPrefix(c.String(), "alien") {
            os.WriteFile(filepath.Join(c.Dir, "a.rpm"), nil, 0644)
            return os.WriteFile(filepath.Join(c.Dir, "b.rpm"), nil, 0644)
        }
        return fakeTools(true)(c)
    }}
    _, err := New(rec, nil, nil, true, t.TempDir()).Generate(context.Background())
    assert.ErrorContains(t, err, "found 2")
}

func TestGenerateConversionFails(t *testing.T) {
    rec := &exectest.Recorder{Hook: func(c exectest.Call) error {
        if c.Name == "alien" {
            return errors.New("exit status 4")
        }
        return fakeTools(true)(c)
    }}
    _, err := New(rec, nil, nil, true, t.TempDir()).Generate(context.Background())
    var procErr *util.ExternalProcessError
    assert.Assert(t, errors.As(err, &procErr))
}
