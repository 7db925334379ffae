// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package exectest provides a recording util.Executor for tests.
package exectest

import (
    "github.com/neverware/client-toolchain/util"
    "context"
    str "strings"
)

// One recorded invocation
type Call struct {
    Dir string
    Name string
    Args []string
}

// The command line as a single string
func (c Call) String() string {
    return str.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor that records calls instead of running them
type Recorder struct {
    Calls []Call
    // Tools LookPath should report as missing
    Missing map[string]bool
    // Called for every Run; a non-nil error fails that call
    Hook func(c Call) error
}

func (r *Recorder) Run(ctx context.Context, dir string, name string, args ...string) error {
    c := Call{Dir: dir, Name: name, Args: append([]string{}, args...)}
    r.Calls = append(r.Calls, c)
    if r.Hook != nil {
        err := r.Hook(c)
        if err != nil {
            return &util.ExternalProcessError{Args: append([]string{name}, args...), Err: err}
        }
    }
    return nil
}

func (r *Recorder) LookPath(name string) (string, error) {
    if r.Missing[name] {
        return "", &util.ToolMissingError{Tool: name}
    }
    return "/usr/bin/" + name, nil
}

// All recorded command lines
func (r *Recorder) Commands() []string {
    var out []string
    for _, c := range r.Calls {
        out = append(out, c.String())
    }
    return out
}
