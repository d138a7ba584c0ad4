// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package coildb

import (
	"errors"
	"fmt"
)

// ErrNotScalar is returned by the Preserve mode when a source or destination is not a scalar.
var ErrNotScalar = errors.New("not a scalar")

// A MissingFieldError reports a pointer that doesn't resolve to a node in the document.
type MissingFieldError struct {
	Pointer string
	err     error
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q: %v", e.Pointer, e.err)
}

func (e *MissingFieldError) Unwrap() error { return e.err }

// IsMissingField returns true if err, or an error it wraps, is a *MissingFieldError.
func IsMissingField(err error) bool {
	var m *MissingFieldError
	return errors.As(err, &m)
}
