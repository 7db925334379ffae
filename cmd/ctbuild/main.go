// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
    "github.com/neverware/client-toolchain/build"
    "github.com/neverware/client-toolchain/cfg"
    "github.com/neverware/client-toolchain/checksum"
    "github.com/neverware/client-toolchain/deb"
    "github.com/neverware/client-toolchain/fetch"
    "github.com/neverware/client-toolchain/graph"
    "github.com/neverware/client-toolchain/jail"
    "github.com/neverware/client-toolchain/rpm"
    "github.com/neverware/client-toolchain/util"
    log "github.com/sirupsen/logrus"
    "context"
    "errors"
    "fmt"
    "os"
    "os/signal"
    "syscall"
)

// Set up logging from the verbosity options
func setupLog(c *cfg.Cfgs) {
    log.SetOutput(os.Stderr)
    log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
    switch {
        case c.Verbose:
            log.SetLevel(log.DebugLevel)
        case c.Quiet:
            log.SetLevel(log.WarnLevel)
        default:
            log.SetLevel(log.InfoLevel)
    }
}

// Exit status for a fatal error
func exitCode(err error) int {
    var procErr *util.ExternalProcessError
    if errors.As(err, &procErr) && procErr.ExitCode() > 0 {
        return procErr.ExitCode()
    }
    return 1
}

func run() int {
    var err error
    c := &cfg.Cfgs{}

    // Option parsing
    c.InitOpt()
    c.AddOpts(build.Names())
    remaining, err := c.Opt.Parse(os.Args[1:])
    err = c.ActOpts(remaining, err)
    if errors.Is(err, cfg.ErrHelp) {
        return 0
    } else if err != nil {
        return 1
    }
    setupLog(c)

    // Config file parsing
    have, err := c.InitCfg()
    if err != nil {
        fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
        return 1
    }
    if have {
        log.Debugf("Using config file %s", c.ConfPath)
    }
    err = c.ParseCfg()
    if err == nil {
        err = c.Resolve()
    }
    if err != nil {
        fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
        return 1
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Wire everything up
    e := util.Host{}
    provisioner := jail.New(e, c)
    fetcher := &fetch.Fetcher{
        Store: checksum.Open(c.ChecksumPath),
        Downloader: fetch.NewHTTPDownloader(c.Quiet),
    }
    builder := build.NewBuilder(e, c, provisioner, fetcher, deb.NewAssembler(e, c))
    driver := &graph.Driver{
        Cfg: c,
        CheckPrivilege: util.RequireRoot,
        Builder: builder,
        Jail: provisioner,
        RPM: rpm.New(e, os.Stdin, os.Stdout, c.AssumeYes, c.RPMOutDir),
    }

    err = driver.Run(ctx)
    if err != nil {
        fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
        return exitCode(err)
    }
    return 0
}

func main() {
    os.Exit(run())
}
