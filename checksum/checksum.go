// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package checksum persists the expected digests of fetched artifacts.
//
// The store is an ini file with a single [checksums] section mapping an
// artifact name to its hex digest:
//
//    [checksums]
//    client_deb = 3f786850e387550fdab836ed7e6dc881de23001b
package checksum

import (
    "github.com/go-ini/ini"
    "github.com/google/renameio"
    "errors"
    "fmt"
    "os"
    "path/filepath"
)

const Section = "checksums"

// The store file could not be read or parsed
type ConfigError struct {
    Path string
    Err error
}

func (e *ConfigError) Error() string {
    return fmt.Sprintf("unable to read checksum store %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
    return e.Err
}

// No digest is recorded for an artifact
type MissingEntryError struct {
    Name string
}

func (e *MissingEntryError) Error() string {
    return fmt.Sprintf("no checksum recorded for %s", e.Name)
}

// Store struct
type Store struct {
    path string
    file *ini.File
    // Whether file reflects what is on disk (or has been written to)
    loaded bool
}

// Load a store, failing if it is absent or unparsable
func Load(path string) (*Store, error) {
    s := Open(path)
    err := s.load()
    if err != nil {
        return nil, err
    }
    return s, nil
}

// Open a store without reading it; the file is read on first Get
func Open(path string) *Store {
    return &Store{path: path, file: ini.Empty()}
}

func (s *Store) load() error {
    if s.loaded {
        return nil
    }
    f, err := ini.Load(s.path)
    if err != nil {
        return &ConfigError{Path: s.path, Err: err}
    }
    s.file = f
    s.loaded = true
    return nil
}

// Path backing the store
func (s *Store) Path() string {
    return s.path
}

// Get the digest recorded for name
func (s *Store) Get(name string) (string, error) {
    err := s.load()
    if err != nil {
        return "", err
    }
    sec, err := s.file.GetSection(Section)
    if err != nil || !sec.HasKey(name) {
        return "", &MissingEntryError{Name: name}
    }
    digest := sec.Key(name).String()
    if digest == "" {
        return "", &MissingEntryError{Name: name}
    }
    return digest, nil
}

// Record the digest for name
func (s *Store) Set(name string, digest string) {
    // A store that was never read still keeps whatever else the file holds
    if !s.loaded {
        if f, err := ini.Load(s.path); err == nil {
            s.file = f
        }
        s.loaded = true
    }
    s.file.Section(Section).Key(name).SetValue(digest)
}

// All recorded digests
func (s *Store) Entries() map[string]string {
    sec, err := s.file.GetSection(Section)
    if err != nil {
        return map[string]string{}
    }
    return sec.KeysHash()
}

// Write the store back to where it was loaded from
func (s *Store) Persist() error {
    return s.PersistTo(s.path)
}

// Rewrite the whole store at path, replacing it atomically
func (s *Store) PersistTo(path string) error {
    var err error

    dir := filepath.Dir(path)
    err = os.MkdirAll(dir, 0755)
    if err != nil {
        return fmt.Errorf("Error %w creating %s", err, dir)
    }

    f, err := renameio.TempFile(dir, path)
    if err != nil {
        return fmt.Errorf("Error %w opening temporary file for %s", err, path)
    }
    defer f.Cleanup()

    _, err = s.file.WriteTo(f)
    if err != nil {
        return fmt.Errorf("Error %w writing %s", err, path)
    }
    err = f.CloseAtomicallyReplace()
    if err != nil {
        return fmt.Errorf("Error %w replacing %s", err, path)
    }
    return nil
}

// Whether err means the store has nothing for the requested artifact
func IsMissing(err error) bool {
    var missing *MissingEntryError
    return errors.As(err, &missing)
}
