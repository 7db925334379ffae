// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package graph

import (
    "github.com/goombaio/dag"
    "bufio"
    "fmt"
    "os"
)

// Check if a []*dag.Vertex slice contains a value
func sliceContains(s []*dag.Vertex, v *dag.Vertex) bool {
    for _, i := range s {
        if i == v {
            return true
        }
    }
    return false
}

// Depth-first traversal from vertex
func (plan *Plan) traverse(w *bufio.Writer, vertex *dag.Vertex, done *[]*dag.Vertex) error {
    var err error
    if sliceContains(*done, vertex) {
        return nil
    }
    *done = append(*done, vertex)

    children, err := plan.g.Successors(vertex)
    if err != nil {
        return fmt.Errorf("Unable to get children of %s with %w", vertex.ID, err)
    }
    for _, child := range children {
        fmt.Fprintf(w, "\"%s\" -> \"%s\"\n", vertex.ID, child.ID)
        err = plan.traverse(w, child, done)
        if err != nil {
            return err
        }
    }
    return nil
}

// Write the plan to a DOT file
func (plan *Plan) DagToDot(fname string) error {
    var err error
    var done []*dag.Vertex

    f, err := os.Create(fname)
    if err != nil {
        return fmt.Errorf("Unable to open %s for writing with %w", fname, err)
    }
    defer f.Close()
    w := bufio.NewWriter(f)

    fmt.Fprintf(w, "digraph {\n")
    for _, vertex := range plan.g.SourceVertices() {
        fmt.Fprintf(w, "start -> \"%s\"\n", vertex.ID)
        err = plan.traverse(w, vertex, &done)
        if err != nil {
            return err
        }
    }
    fmt.Fprintf(w, "}\n")

    err = w.Flush()
    if err != nil {
        return fmt.Errorf("Unable to write to %s with %w", fname, err)
    }
    return f.Close()
}
