// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

/*
Package rules loads sync rules from a file.

A rules file names the table and field to use and lists the records to copy:

	table = "db"
	field = "/data_value/value"

	[[sync]]
	src = 10006
	dst = 10005

TOML files are parsed with go-toml, .json, .jsonnet and .libsonnet files are evaluated
with go-jsonnet. Record ids may be written as numbers or strings.

The location can be a local path or anything go-getter understands (http URLs, git, s3...).
*/
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-jsonnet"
	"github.com/hashicorp/go-getter"
	"github.com/mkmik/multierror"
	"github.com/pelletier/go-toml"

	"coilsync.io/pkg/coildb"
)

// File is the content of a rules file.
type File struct {
	Table string `json:"table"`
	Field string `json:"field"`
	Sync  []Rule `json:"sync"`
}

// A Rule is a coildb.Rule as found in a rules file.
type Rule struct {
	Src ID `json:"src"`
	Dst ID `json:"dst"`
}

// An ID is a record id. It can be decoded from a JSON string or number.
type ID string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("record id must be a string or a number, got %s", b)
	}
	*id = ID(n.String())
	return nil
}

// Rules returns the rules as coildb rules.
func (f *File) Rules() []coildb.Rule {
	res := make([]coildb.Rule, len(f.Sync))
	for i, r := range f.Sync {
		res[i] = coildb.Rule{Src: string(r.Src), Dst: string(r.Dst)}
	}
	return res
}

// Validate checks that every rule names two distinct records.
func (f *File) Validate() error {
	var errs []error
	if len(f.Sync) == 0 {
		errs = append(errs, fmt.Errorf("no sync rules"))
	}
	for i, r := range f.Sync {
		if r.Src == "" {
			errs = append(errs, fmt.Errorf("rule %d: missing src", i))
		}
		if r.Dst == "" {
			errs = append(errs, fmt.Errorf("rule %d: missing dst", i))
		}
		if r.Src != "" && r.Src == r.Dst {
			errs = append(errs, fmt.Errorf("rule %d: src and dst are both %q", i, r.Src))
		}
	}
	if errs != nil {
		return multierror.Join(errs)
	}
	return nil
}

// Load fetches, parses and validates a rules file.
func Load(src string) (*File, error) {
	path, cleanup, err := fetch(src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := parseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return f, nil
}

// fetch returns a local path holding the content of src.
// The returned cleanup function removes any temporary copy.
func fetch(src string) (string, func(), error) {
	if _, err := os.Stat(src); err == nil {
		return src, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "coilsync")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	base, _, _ := strings.Cut(filepath.Base(src), "?")
	dst := filepath.Join(dir, base)
	opt := func(c *getter.Client) (err error) {
		c.Pwd, err = os.Getwd()
		return
	}
	if err := getter.GetFile(dst, src, opt); err != nil {
		cleanup()
		return "", nil, err
	}
	return dst, cleanup, nil
}

func parseFile(path string) (*File, error) {
	var (
		b   []byte
		err error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		b, err = tomlToJSON(path)
	case ".json", ".jsonnet", ".libsonnet":
		b, err = evalJsonnet(path)
	default:
		return nil, fmt.Errorf("unsupported rules format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func tomlToJSON(path string) ([]byte, error) {
	t, err := toml.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(t.ToMap())
}

func evalJsonnet(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vm := jsonnet.MakeVM()
	vm.Importer(&jsonnet.FileImporter{JPaths: []string{filepath.Dir(path)}})
	out, err := vm.EvaluateAnonymousSnippet(path, string(b))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
