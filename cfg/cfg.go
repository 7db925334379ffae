// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package cfg

import (
    getoptions "github.com/DavidGamba/go-getoptions"
    "github.com/go-ini/ini"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    str "strings"
)

// Defaults for a client toolchain checkout
const (
    DefaultConf = "conf.ini"
    DefaultVersion = "v0.0.1"
    DefaultSuite = "saucy"
    DefaultJailArch = "i386"
    DefaultVariant = "buildd"
    DefaultMirror = "http://archive.ubuntu.com/ubuntu/"
    DefaultDeployJail = "/chroot/precise"
    DefaultArtifactName = "client_deb"
    DefaultArtifactURL = "https://s3.amazonaws.com/Juicebox/AptServerFiles/client_debs.tar.bz2"
    DefaultPackageName = "neverware-virt-viewer"
    DefaultMaintainer = "neverware <it@neverware.com>"
    DefaultDescription = "Neverware's flavor of virt-viewer."
    DefaultPackager = "./neverware_deb_packager.py"
)

// The user asked for --help
var ErrHelp = errors.New("help requested")

// Configuration struct
type Cfgs struct {
    // Checkout holding resources/, build_scripts/ and apt_configs/
    BaseDir string
    // Build chroot jail
    JailDir string
    // Jail that turns staged trees into .debs and serves the apt repo
    DeployJailDir string
    // Where the apt repo inside the deploy jail keeps its packages
    PackageIndexDir string
    // Checksum store
    ChecksumPath string

    // Client debs artifact
    ArtifactName string
    ArtifactURL string
    ArtifactPath string

    // Install prefix handed to build scripts, empty for none
    BuildPrefix string
    // Version given on the command line (vMAJ.MIN.PATCH)
    DebVersion string
    // Debian version derived from DebVersion
    Version string

    // debootstrap parameters
    Suite string
    JailArch string
    Variant string
    Mirror string
    // Replace the jail's /sbin/start with a no-op
    StubStart bool

    // Final package
    PackageName string
    Maintainer string
    Description string
    PackageArch string
    Packager string

    // Actions
    GenerateRPM bool
    MakeJail bool
    PackageClientDebs bool
    CopyDependentDebs bool
    BuildAll bool
    // Component name -> requested
    Selected map[string]bool
    // Where the debootstrap rpm ends up
    RPMOutDir string
    // Don't ask before doing things
    AssumeYes bool

    // Write the plan as DOT here
    PlanDot string
    Verbose bool
    Quiet bool
    // Path to configuration file
    ConfPath string

    // Option parsing
    Opt *getoptions.GetOpt
    // Component names in build order
    components []string
    // Configuration file parsing
    cfgf *ini.File
}

// Create the options structure
func (cfg *Cfgs) InitOpt() {
    cfg.Opt = getoptions.New()
    cfg.Opt.SetMode(getoptions.Bundling)
    cfg.Selected = make(map[string]bool)
}

// Add options; components are the selectable component names
func (cfg *Cfgs) AddOpts(components []string) {
    opt := cfg.Opt
    cfg.components = components

    opt.Bool("help", false, opt.Alias("h"))
    opt.BoolVar(&cfg.GenerateRPM, "generate-debootstrap-rpm", false,
        opt.Description("Generate the debootstrap RPM to install on redhat machines."))
    opt.BoolVar(&cfg.MakeJail, "make-chroot-jail", false,
        opt.Description("Create the chroot jail the client toolchain is compiled in."))
    opt.StringVar(&cfg.BuildPrefix, "build-prefix", "",
        opt.Description("The prefix the different components will be installed to."))
    opt.BoolVar(&cfg.PackageClientDebs, "package-client-debs", false,
        opt.Description("Grab all the required debs from external sources and wrap them up in a tarball."))
    opt.BoolVar(&cfg.CopyDependentDebs, "copy-dependent-debs", false,
        opt.Description("Copy the debs downloaded into the jail into the apt repo."))
    opt.BoolVar(&cfg.BuildAll, "build-all", false,
        opt.Description("Build all required components."))
    opt.StringVar(&cfg.DebVersion, "deb-version", DefaultVersion,
        opt.Description("The version of the deb we are going to produce."))
    for _, name := range components {
        opt.Bool(name, false, opt.Description("Build " + name + "."))
    }

    opt.StringVar(&cfg.ConfPath, "conf", DefaultConf, opt.Alias("c"),
        opt.Description("Configuration file path."))
    opt.StringVar(&cfg.BaseDir, "base-dir", "", opt.Alias("b"),
        opt.Description("Client toolchain checkout (default: current directory)."))
    opt.StringVar(&cfg.JailDir, "jail-dir", "", opt.Alias("j"),
        opt.Description("Chroot jail to build in (default: <base-dir>/build_chroot)."))
    opt.BoolVar(&cfg.StubStart, "stub-start", false,
        opt.Description("Stub out /sbin/start in a new jail so package scripts can't start services."))
    opt.StringVar(&cfg.RPMOutDir, "rpm-dir", "",
        opt.Description("Where to put the debootstrap rpm (default: <base-dir>)."))
    opt.BoolVar(&cfg.AssumeYes, "yes", false, opt.Alias("y"),
        opt.Description("Don't ask for confirmation."))
    opt.StringVar(&cfg.PlanDot, "plan-dot", "",
        opt.Description("Write the planned steps as a graphviz file."))
    opt.BoolVar(&cfg.Verbose, "verbose", false, opt.Alias("v"),
        opt.Description("Log debugging output."))
    opt.BoolVar(&cfg.Quiet, "quiet", false, opt.Alias("q"),
        opt.Description("Only log warnings and errors."))
}

// Act on options
func (cfg *Cfgs) ActOpts(remaining []string, err error) error {
    // If we errored show the error and a help
    if err != nil {
        fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
        fmt.Fprint(os.Stderr, cfg.Opt.Help(getoptions.HelpSynopsis))
        return err
    }

    // They asked for help, give them help
    if cfg.Opt.Called("help") {
        fmt.Fprint(os.Stderr, cfg.Opt.Help())
        return ErrHelp
    }

    // Warn for unhandled arguments
    if len(remaining) != 0 {
        fmt.Fprintf(os.Stderr, "WARN: Unhandled arguments: %v\n", remaining)
    }

    for _, name := range cfg.components {
        cfg.Selected[name] = cfg.Opt.Called(name)
    }
    return nil
}

// Check the config file exists
func (cfg *Cfgs) haveCfgFile() (bool, error) {
    _, err := os.Stat(cfg.ConfPath)
    if os.IsNotExist(err) {
        if !cfg.Opt.Called("conf") {
            // If it is the default, there is no config file
            return false, nil
        }
        // We were given a bad config file
        return false, fmt.Errorf("Cannot open config file %s", cfg.ConfPath)
    }
    return true, nil
}

// Initialize config file struct
// Returns if there is a config file
func (cfg *Cfgs) InitCfg() (bool, error) {
    have, err := cfg.haveCfgFile()
    if err != nil || !have {
        cfg.cfgf = ini.Empty()
        return have, err
    }

    cfg.cfgf, err = ini.Load(cfg.ConfPath)
    if err != nil {
        return true, fmt.Errorf("Error %w loading config file %s", err, cfg.ConfPath)
    }
    return true, nil
}

// Take a string from the config file unless it was given as an option
func (cfg *Cfgs) overlay(field *string, option string, section string, key string) {
    if option != "" && cfg.Opt.Called(option) {
        return
    }
    value := cfg.cfgf.Section(section).Key(key).String()
    if value != "" {
        *field = value
    }
}

// Same as overlay for booleans
func (cfg *Cfgs) overlayBool(field *bool, option string, section string, key string) error {
    if cfg.Opt.Called(option) {
        return nil
    }
    k := cfg.cfgf.Section(section).Key(key)
    if k.String() == "" {
        return nil
    }
    v, err := k.Bool()
    if err != nil {
        return fmt.Errorf("%s.%s in %s is not a boolean", section, key, cfg.ConfPath)
    }
    *field = v
    return nil
}

// Parse the config file
func (cfg *Cfgs) ParseCfg() error {
    // Paths
    cfg.overlay(&cfg.BaseDir, "base-dir", "paths", "base")
    cfg.overlay(&cfg.JailDir, "jail-dir", "paths", "jail")
    cfg.overlay(&cfg.DeployJailDir, "", "paths", "deploy_jail")
    cfg.overlay(&cfg.PackageIndexDir, "", "paths", "package_index")
    cfg.overlay(&cfg.ChecksumPath, "", "paths", "checksums")
    cfg.overlay(&cfg.RPMOutDir, "rpm-dir", "paths", "rpm_dir")

    // Jail
    cfg.overlay(&cfg.Suite, "", "jail", "suite")
    cfg.overlay(&cfg.JailArch, "", "jail", "arch")
    cfg.overlay(&cfg.Variant, "", "jail", "variant")
    cfg.overlay(&cfg.Mirror, "", "jail", "mirror")
    cfg.overlay(&cfg.BuildPrefix, "build-prefix", "jail", "prefix")
    err := cfg.overlayBool(&cfg.StubStart, "stub-start", "jail", "stub_start")
    if err != nil {
        return err
    }

    // Artifact
    cfg.overlay(&cfg.ArtifactName, "", "artifact", "name")
    cfg.overlay(&cfg.ArtifactURL, "", "artifact", "url")
    cfg.overlay(&cfg.ArtifactPath, "", "artifact", "path")

    // Package
    cfg.overlay(&cfg.DebVersion, "deb-version", "package", "version")
    cfg.overlay(&cfg.PackageName, "", "package", "name")
    cfg.overlay(&cfg.Maintainer, "", "package", "maintainer")
    cfg.overlay(&cfg.Description, "", "package", "description")
    cfg.overlay(&cfg.PackageArch, "", "package", "architecture")
    cfg.overlay(&cfg.Packager, "", "package", "packager")

    return nil
}

// Fill in anything still unset and make every path absolute
func (cfg *Cfgs) Resolve() error {
    var err error

    if cfg.BaseDir == "" {
        cfg.BaseDir, err = os.Getwd()
        if err != nil {
            return errors.New("Error getting current working directory")
        }
    }
    cfg.BaseDir, err = filepath.Abs(cfg.BaseDir)
    if err != nil {
        return fmt.Errorf("Error %w resolving %s", err, cfg.BaseDir)
    }

    setDefault(&cfg.JailDir, filepath.Join(cfg.BaseDir, "build_chroot"))
    setDefault(&cfg.DeployJailDir, DefaultDeployJail)
    setDefault(&cfg.PackageIndexDir, filepath.Join(cfg.DeployJailDir, "www", "dists", "precise", "neverware", "binary-i386"))
    setDefault(&cfg.ChecksumPath, filepath.Join(cfg.BaseDir, "checksums.cfg"))
    setDefault(&cfg.ArtifactPath, filepath.Join(cfg.BaseDir, "client_debs.tar.bz2"))
    setDefault(&cfg.RPMOutDir, cfg.BaseDir)
    setDefault(&cfg.ArtifactName, DefaultArtifactName)
    setDefault(&cfg.ArtifactURL, DefaultArtifactURL)
    setDefault(&cfg.Suite, DefaultSuite)
    setDefault(&cfg.JailArch, DefaultJailArch)
    setDefault(&cfg.Variant, DefaultVariant)
    setDefault(&cfg.Mirror, DefaultMirror)
    setDefault(&cfg.PackageName, DefaultPackageName)
    setDefault(&cfg.Maintainer, DefaultMaintainer)
    setDefault(&cfg.Description, DefaultDescription)
    setDefault(&cfg.PackageArch, cfg.JailArch)
    setDefault(&cfg.Packager, DefaultPackager)
    setDefault(&cfg.DebVersion, DefaultVersion)

    for _, p := range []*string{&cfg.JailDir, &cfg.DeployJailDir, &cfg.PackageIndexDir,
            &cfg.ChecksumPath, &cfg.ArtifactPath, &cfg.RPMOutDir} {
        if !filepath.IsAbs(*p) {
            *p = filepath.Join(cfg.BaseDir, *p)
        }
        *p = filepath.Clean(*p)
    }

    cfg.Version, err = ParseVersion(cfg.DebVersion)
    if err != nil {
        return err
    }

    if cfg.BuildAll {
        for _, name := range cfg.components {
            cfg.Selected[name] = true
        }
    }
    return nil
}

func setDefault(field *string, value string) {
    if *field == "" {
        *field = value
    }
}

// Resources copied into the jail
func (cfg *Cfgs) ResourcesDir() string {
    return filepath.Join(cfg.BaseDir, "resources")
}

// Build scripts copied into the jail
func (cfg *Cfgs) BuildScriptsDir() string {
    return filepath.Join(cfg.BaseDir, "build_scripts")
}

// Package maintainer scripts (preinst, postinst, ...)
func (cfg *Cfgs) LifecycleDir() string {
    return filepath.Join(cfg.BaseDir, "apt_configs", str.ReplaceAll(cfg.PackageName, "-", "_"))
}

// Whitespace separated list of the package's dependencies
func (cfg *Cfgs) DependencyList() string {
    return filepath.Join(cfg.ResourcesDir(), "scripts", "dependencies.list")
}

// Tree the build scripts install into, relative to the jail root
func (cfg *Cfgs) PayloadDir() string {
    return filepath.Join("opt", "neverware")
}

// Where the jail's download script leaves client debs, relative to the jail root
func (cfg *Cfgs) ClientDebsDir() string {
    return filepath.Join("opt", "client_debs")
}

// Whether anything at all was asked of us
func (cfg *Cfgs) AnythingToDo() bool {
    if cfg.GenerateRPM || cfg.MakeJail || cfg.PackageClientDebs || cfg.CopyDependentDebs || cfg.BuildAll {
        return true
    }
    for _, v := range cfg.Selected {
        if v {
            return true
        }
    }
    return false
}
