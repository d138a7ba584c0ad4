// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// openInput opens a data file, or the standard input if filename is "-".
func openInput(ctx *Context, filename string) (io.ReadCloser, error) {
	if filename != "-" {
		return os.Open(filename)
	}
	if isTerminal(ctx.Stdin) {
		fmt.Fprintf(os.Stderr, "(reading coil data from standard input; hit ctrl-c if this is not what you wanted)\n")
	}
	return io.NopCloser(ctx.Stdin), nil
}

// isTerminal returns true if v is a file attached to a terminal.
func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
