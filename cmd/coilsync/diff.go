// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// printDiff writes the lines that differ between before and after, prefixed with - and +.
// Colors are used only when w is a terminal.
func printDiff(w io.Writer, filename, before, after string) error {
	var (
		del  = color.New(color.FgRed)
		ins  = color.New(color.FgGreen)
		head = color.New(color.Bold)
	)
	if isTerminal(w) {
		for _, c := range []*color.Color{del, ins, head} {
			c.EnableColor()
		}
	} else {
		for _, c := range []*color.Color{del, ins, head} {
			c.DisableColor()
		}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	if _, err := head.Fprintf(w, "--- %s\n+++ %s\n", filename, filename); err != nil {
		return err
	}
	for _, d := range diffs {
		var c *color.Color
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			c, prefix = del, "-"
		case diffmatchpatch.DiffInsert:
			c, prefix = ins, "+"
		default:
			continue
		}
		for _, l := range splitLines(d.Text) {
			if _, err := c.Fprintln(w, prefix+l); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitLines splits s in lines, ignoring the final newline.
func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
