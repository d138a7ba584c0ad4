// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mkmik/multierror"

	"coilsync.io/pkg/coildb"
	"coilsync.io/pkg/rules"
	"coilsync.io/pkg/rwfile"
)

type Context struct {
	Stdout io.Writer
	Stdin  io.Reader
}

type CLI struct {
	Sync  SyncCmd  `cmd:"" default:"withargs" help:"Copy the value of a record into another record (default command)."`
	Get   GetCmd   `cmd:"" help:"Print record values."`
	Check CheckCmd `cmd:"" help:"Check that every rule can be applied, without writing anything."`

	Verbose bool             `short:"v" help:"Log every change."`
	Version kong.VersionFlag `name:"version" help:"Print version information and quit"`
}

var cli CLI

type CommonFlags struct {
	Filename string `name:"filename" short:"f" default:"test/flow.coil.data" help:"Coil data file. Use - to read from standard input and write to standard output."`
	Table    string `name:"table" default:"db" help:"Top-level key holding the records."`
	Field    string `name:"field" default:"/data_value/value" help:"JSONPointer to the value, relative to a record."`
}

type RuleFlags struct {
	Src   string `name:"src" default:"10006" help:"Source record id."`
	Dst   string `name:"dst" default:"10005" help:"Destination record id."`
	Rules string `name:"rules" help:"File or URL with sync rules (toml, jsonnet or json). Overrides --src and --dst, and --table and --field when set in the file."`
}

// config builds a sync configuration from the flags and the optional rules file.
func config(c CommonFlags, r RuleFlags) (coildb.Config, error) {
	cfg := coildb.Config{
		Path:  c.Filename,
		Table: c.Table,
		Field: c.Field,
		Rules: []coildb.Rule{{Src: r.Src, Dst: r.Dst}},
	}
	if r.Rules == "" {
		return cfg, nil
	}

	f, err := rules.Load(r.Rules)
	if err != nil {
		return coildb.Config{}, err
	}
	if f.Table != "" {
		cfg.Table = f.Table
	}
	if f.Field != "" {
		cfg.Field = f.Field
	}
	cfg.Rules = f.Rules()
	return cfg, nil
}

type SyncCmd struct {
	CommonFlags
	RuleFlags

	Preserve bool `name:"preserve" help:"Only replace the text of the destination values, leaving the rest of the file byte for byte."`
	Atomic   bool `name:"atomic" help:"Write to a temporary file and rename it over the original."`
	Stdout   bool `name:"stdout" help:"Output to stdout and never update files in-place."`
	Diff     bool `name:"diff" help:"Print the changes made to the file."`
	DryRun   bool `name:"dry-run" help:"Don't write anything. Useful with --diff."`
}

func (s *SyncCmd) Run(ctx *Context) error {
	cfg, err := config(s.CommonFlags, s.RuleFlags)
	if err != nil {
		return err
	}
	if s.Preserve {
		cfg.Mode = coildb.Preserve
	}
	cfg.Atomic = s.Atomic

	syncer := cfg.Syncer()

	if s.Filename == "-" || s.Stdout {
		if s.Diff {
			return fmt.Errorf("--diff cannot be used when writing to standard output")
		}
		in, err := openInput(ctx, s.Filename)
		if err != nil {
			return err
		}
		defer in.Close()
		if err := rwfile.Stdio(syncer.Transformer(), ctx.Stdout, in); err != nil {
			return err
		}
		logChanges(syncer.Changes())
		return nil
	}

	if s.Diff || s.DryRun {
		src, err := os.ReadFile(s.Filename)
		if err != nil {
			return err
		}
		dst, err := syncer.Apply(src)
		if err != nil {
			return err
		}
		if s.Diff {
			if err := printDiff(ctx.Stdout, s.Filename, string(src), string(dst)); err != nil {
				return err
			}
		}
		if !s.DryRun {
			if err := cfg.Rewrite(coildb.Fixed(src, dst)); err != nil {
				return err
			}
		}
		logChanges(syncer.Changes())
		return nil
	}

	changes, err := coildb.Sync(cfg)
	if err != nil {
		return err
	}
	logChanges(changes)
	return nil
}

func logChanges(changes []coildb.Change) {
	for _, c := range changes {
		log.Printf("%s", c)
	}
}

type GetCmd struct {
	CommonFlags

	IDs []string `arg:"" optional:"" name:"id" help:"Record ids. All records with a value when omitted."`
}

func (g *GetCmd) Run(ctx *Context) error {
	in, err := openInput(ctx, g.Filename)
	if err != nil {
		return err
	}
	defer in.Close()
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	d, err := coildb.Parse(src, g.Table, g.Field)
	if err != nil {
		return err
	}

	ids := g.IDs
	all := len(ids) == 0
	if all {
		if ids, err = d.IDs(); err != nil {
			return err
		}
	}

	var errs []error
	for _, id := range ids {
		v, err := d.Get(id)
		if all && coildb.IsMissingField(err) {
			continue
		} else if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(ctx.Stdout, "%s: %s\n", id, v)
	}
	if errs != nil {
		return multierror.Join(errs)
	}
	return nil
}

type CheckCmd struct {
	CommonFlags
	RuleFlags

	Preserve bool `name:"preserve" help:"Check that the rules can be applied in preserve mode."`
}

func (c *CheckCmd) Run(ctx *Context) error {
	cfg, err := config(c.CommonFlags, c.RuleFlags)
	if err != nil {
		return err
	}
	if c.Preserve {
		cfg.Mode = coildb.Preserve
	}

	in, err := openInput(ctx, c.Filename)
	if err != nil {
		return err
	}
	defer in.Close()
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	syncer := cfg.Syncer()
	if _, err := syncer.Apply(src); err != nil {
		return err
	}
	logChanges(syncer.Changes())
	fmt.Fprintf(ctx.Stdout, "%s: %d rule(s) ok\n", c.Filename, len(cfg.Rules))
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Description("Copy record values inside Modbus simulator data files."),
		kong.UsageOnError(),
		kong.Vars{
			"version": "0.0.1",
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)

	log.SetFlags(0)
	if !cli.Verbose {
		log.SetOutput(io.Discard)
	}

	err := ctx.Run(&Context{Stdout: os.Stdout, Stdin: os.Stdin})
	ctx.FatalIfErrorf(err)
}
