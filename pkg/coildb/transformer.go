// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package coildb

import (
	"bytes"
	"errors"

	"golang.org/x/text/transform"
)

// ErrModified is returned by a Fixed transformer when its input is not the expected one.
var ErrModified = errors.New("content changed since it was read")

// NewTransformer returns a transform.Transformer that feeds the whole input to f.
// It must be used with transform.Bytes, which hands over the entire input in one call.
func NewTransformer(f func(src []byte) ([]byte, error)) *WholeTransformer {
	return &WholeTransformer{f: f}
}

// A WholeTransformer is a transform.Transformer that processes its input in one go.
type WholeTransformer struct {
	f    func(src []byte) ([]byte, error)
	out  []byte
	done bool
}

// Reset implements the golang.org/x/text/transform.Transformer interface.
func (t *WholeTransformer) Reset() {
	t.out, t.done = nil, false
}

// Transform implements the golang.org/x/text/transform.Transformer interface.
func (t *WholeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !atEOF {
		return 0, 0, transform.ErrShortSrc
	}
	if !t.done {
		b, err := t.f(src)
		if err != nil {
			return 0, 0, err
		}
		t.out, t.done = b, true
	}
	if len(dst) < len(t.out) {
		return 0, 0, transform.ErrShortDst
	}
	return copy(dst, t.out), len(src), nil
}

// Fixed returns a transformer that turns before into after.
// Any other input fails with ErrModified.
func Fixed(before, after []byte) *WholeTransformer {
	return NewTransformer(func(src []byte) ([]byte, error) {
		if !bytes.Equal(src, before) {
			return nil, ErrModified
		}
		return after, nil
	})
}
