// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

// Package graph turns the requested actions into an ordered plan of steps
// and runs it.
package graph

import (
    "github.com/neverware/client-toolchain/build"
    "github.com/neverware/client-toolchain/cfg"
    "github.com/goombaio/dag"
    "context"
    "errors"
    "fmt"
)

// Step names for the top-level actions
const (
    StepRPM = "generate-debootstrap-rpm"
    StepMakeJail = "make-chroot-jail"
    StepPackageClientDebs = "package-client-debs"
    StepCopyDependentDebs = "copy-dependent-debs"
)

// Runs components and the client deb helpers
type Builder interface {
    Build(ctx context.Context, comp build.Component) error
    PackageClientDebs(ctx context.Context) (string, error)
    CopyDependentDebs(ctx context.Context) error
}

// Creates the jail on demand
type Provisioner interface {
    Ensure(ctx context.Context, jailPath string) error
}

// Produces the debootstrap rpm
type Converter interface {
    Generate(ctx context.Context) (string, error)
}

// Step struct
type Step struct {
    Name string
    Do func(ctx context.Context) error
}

// Plan struct
type Plan struct {
    g *dag.DAG
    // Vertex IDs in insertion order
    ids []string
    last *dag.Vertex
}

var stepExistsError = errors.New("Step already exists in plan")

// Add a step that runs after every step added so far
func (plan *Plan) addStep(step Step) error {
    var err error
    graph := plan.g

    _, vertexErr := graph.GetVertex(step.Name)
    // The only type of error returned is a vertex-not-exist error
    if vertexErr == nil {
        return fmt.Errorf("%w: %s", stepExistsError, step.Name)
    }

    vertex := dag.NewVertex(step.Name, step)
    err = graph.AddVertex(vertex)
    if err != nil {
        return fmt.Errorf("Error %w adding vertex %s", err, step.Name)
    }
    if plan.last != nil {
        err = graph.AddEdge(plan.last, vertex)
        if err != nil {
            return fmt.Errorf("Error %w adding edge for %s -> %s", err, plan.last.ID, step.Name)
        }
    }
    plan.last = vertex
    plan.ids = append(plan.ids, step.Name)
    return nil
}

// Generate the plan for c. Actions run in a fixed priority order: rpm,
// jail, client debs, then each selected component in build order.
func NewPlan(c *cfg.Cfgs, b Builder, p Provisioner, r Converter) (*Plan, error) {
    var err error
    plan := &Plan{g: dag.NewDAG()}

    // Selections may come from anywhere that fills Cfgs, not just flags
    for name, on := range c.Selected {
        if _, err := build.ParseComponent(name); on && err != nil {
            return nil, err
        }
    }

    var steps []Step
    if c.GenerateRPM {
        steps = append(steps, Step{StepRPM, func(ctx context.Context) error {
            _, err := r.Generate(ctx)
            return err
        }})
    }
    if c.MakeJail {
        steps = append(steps, Step{StepMakeJail, func(ctx context.Context) error {
            return p.Ensure(ctx, c.JailDir)
        }})
    }
    if c.PackageClientDebs {
        steps = append(steps, Step{StepPackageClientDebs, func(ctx context.Context) error {
            _, err := b.PackageClientDebs(ctx)
            return err
        }})
    }
    if c.CopyDependentDebs {
        steps = append(steps, Step{StepCopyDependentDebs, b.CopyDependentDebs})
    }
    for _, comp := range build.Components() {
        if !c.BuildAll && !c.Selected[comp.String()] {
            continue
        }
        comp := comp
        steps = append(steps, Step{comp.String(), func(ctx context.Context) error {
            return b.Build(ctx, comp)
        }})
    }

    for _, step := range steps {
        err = plan.addStep(step)
        if err != nil {
            return nil, err
        }
    }
    return plan, nil
}

// Steps in the order they run
func (plan *Plan) Steps() ([]Step, error) {
    graph := plan.g
    done := make(map[string]bool)
    var out []Step

    for len(out) < len(plan.ids) {
        progressed := false
        for _, id := range plan.ids {
            if done[id] {
                continue
            }
            vertex, err := graph.GetVertex(id)
            if err != nil {
                return nil, fmt.Errorf("Error %w getting vertex %s", err, id)
            }
            parents, err := graph.Predecessors(vertex)
            if err != nil {
                return nil, fmt.Errorf("Unable to get parents of %s with %w", id, err)
            }
            ready := true
            for _, parent := range parents {
                if !done[parent.ID] {
                    ready = false
                    break
                }
            }
            if !ready {
                continue
            }
            done[id] = true
            out = append(out, vertex.Value.(Step))
            progressed = true
        }
        if !progressed {
            return nil, errors.New("plan has a cycle")
        }
    }
    return out, nil
}

// Names of the steps in the order they run
func (plan *Plan) Names() ([]string, error) {
    steps, err := plan.Steps()
    if err != nil {
        return nil, err
    }
    var names []string
    for _, step := range steps {
        names = append(names, step.Name)
    }
    return names, nil
}
