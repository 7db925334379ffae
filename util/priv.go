// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package util

import (
    "golang.org/x/sys/unix"
    "fmt"
    str "strings"
)

// Not running as root
type PrivilegeError struct {
    UID int
}

func (e *PrivilegeError) Error() string {
    return fmt.Sprintf("must be run as root (running as uid %d)", e.UID)
}

// Check whether the process has root privileges
func RequireRoot() error {
    uid := unix.Geteuid()
    if uid != 0 {
        return &PrivilegeError{UID: uid}
    }
    return nil
}

// Get the host machine name, e.g. x86_64
func HostArch() (string, error) {
    var utsname unix.Utsname
    err := unix.Uname(&utsname)
    if err != nil {
        return "", fmt.Errorf("Error %w getting uname", err)
    }
    return str.TrimRight(string(utsname.Machine[:]), "\x00"), nil
}

// Whether a host of arch hostArch can run debootstrap for jailArch natively
func NativeFor(hostArch string, jailArch string) bool {
    switch jailArch {
        case "i386":
            return hostArch == "x86_64" || hostArch == "i686" || hostArch == "i586" || hostArch == "i386"
        case "amd64":
            return hostArch == "x86_64"
    }
    return hostArch == jailArch
}
