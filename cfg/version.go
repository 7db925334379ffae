// SPDX-FileCopyrightText: 2014 Neverware <it@neverware.com>
//
// SPDX-License-Identifier: BSD-2-Clause

package cfg

import (
    "fmt"
    "regexp"
)

var versionRe = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)

// The version given is not vMAJOR.MINOR.PATCH
type InvalidVersionError struct {
    Version string
}

func (e *InvalidVersionError) Error() string {
    return fmt.Sprintf("Bad version number %s (expected vMAJOR.MINOR.PATCH)", e.Version)
}

// Turn vMAJOR.MINOR.PATCH into the Debian version MAJOR.MINOR-PATCH
func ParseVersion(v string) (string, error) {
    m := versionRe.FindStringSubmatch(v)
    if m == nil {
        return "", &InvalidVersionError{Version: v}
    }
    return fmt.Sprintf("%s.%s-%s", m[1], m[2], m[3]), nil
}
