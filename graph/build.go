// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package graph

import (
    "github.com/neverware/client-toolchain/cfg"
    log "github.com/sirupsen/logrus"
    "context"
    "fmt"
)

// Run every step in order, stopping at the first failure
func (plan *Plan) Run(ctx context.Context) error {
    steps, err := plan.Steps()
    if err != nil {
        return err
    }

    for i, step := range steps {
        if err := ctx.Err(); err != nil {
            return fmt.Errorf("%w before %s", err, step.Name)
        }
        log.WithField("step", step.Name).Infof("Running step %d/%d", i + 1, len(steps))
        err = step.Do(ctx)
        if err != nil {
            return err
        }
    }
    return nil
}

// Driver struct
type Driver struct {
    Cfg *cfg.Cfgs
    // Must pass before anything touches the filesystem
    CheckPrivilege func() error
    Builder Builder
    Jail Provisioner
    RPM Converter
}

// Check privileges, plan and run
func (d *Driver) Run(ctx context.Context) error {
    var err error

    if d.CheckPrivilege != nil {
        err = d.CheckPrivilege()
        if err != nil {
            return err
        }
    }

    if !d.Cfg.AnythingToDo() {
        log.Warn("Nothing to do")
        return nil
    }

    plan, err := NewPlan(d.Cfg, d.Builder, d.Jail, d.RPM)
    if err != nil {
        return err
    }

    if d.Cfg.PlanDot != "" {
        err = plan.DagToDot(d.Cfg.PlanDot)
        if err != nil {
            return err
        }
    }

    names, err := plan.Names()
    if err != nil {
        return err
    }
    log.Debugf("Plan: %v", names)
    return plan.Run(ctx)
}
