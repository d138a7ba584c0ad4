// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package coildb

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/jsonpointer"
	yptr "github.com/vmware-labs/yaml-jsonpointer"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTable is the top-level key holding the records.
	DefaultTable = "db"
	// DefaultField points to the current state of a record.
	DefaultField = "/data_value/value"
)

// A Database is a parsed data file.
type Database struct {
	table string
	field string
	root  yaml.Node
}

// Parse parses a single YAML document. Records are looked up under table and
// values are found at field, a JSONPointer relative to each record.
func Parse(src []byte, table, field string) (*Database, error) {
	if table == "" {
		table = DefaultTable
	}
	if field == "" {
		field = DefaultField
	}
	if _, err := jsonpointer.New(field); err != nil {
		return nil, fmt.Errorf("bad field pointer %q: %w", field, err)
	}

	d := &Database{table: table, field: field}
	if err := yaml.Unmarshal(src, &d.root); err != nil {
		return nil, err
	}
	if d.root.Kind != yaml.DocumentNode || len(d.root.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return d, nil
}

// IDs returns the record ids in document order.
func (d *Database) IDs() ([]string, error) {
	t, err := d.find(d.tablePointer())
	if err != nil {
		return nil, err
	}
	if t.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%q is not a mapping", d.table)
	}
	var res []string
	for i := 0; i < len(t.Content); i += 2 {
		res = append(res, t.Content[i].Value)
	}
	return res, nil
}

// Record returns the node of the record with the given id.
func (d *Database) Record(id string) (*yaml.Node, error) {
	return d.find(d.recordPointer(id))
}

// Value returns the node pointed by the field of the record with the given id.
func (d *Database) Value(id string) (*yaml.Node, error) {
	return d.find(d.valuePointer(id))
}

// Get returns the YAML text of the value of the given record.
func (d *Database) Get(id string) (string, error) {
	n, err := d.Value(id)
	if err != nil {
		return "", err
	}
	return render(n)
}

// A Change describes one copy performed on a document.
type Change struct {
	Rule
	Old string
	New string
}

func (c Change) String() string {
	return fmt.Sprintf("%s -> %s: %s => %s", c.Src, c.Dst, c.Old, c.New)
}

// Copy overwrites the value of record dst with a copy of the value of record src.
// Both values are resolved before the document is touched.
func (d *Database) Copy(src, dst string) (Change, error) {
	s, err := d.Value(src)
	if err != nil {
		return Change{}, err
	}
	t, err := d.Value(dst)
	if err != nil {
		return Change{}, err
	}

	old, err := render(t)
	if err != nil {
		return Change{}, err
	}
	overwrite(t, s)
	cur, err := render(t)
	if err != nil {
		return Change{}, err
	}
	return Change{Rule: Rule{Src: src, Dst: dst}, Old: old, New: cur}, nil
}

// Encode serializes the whole document.
func (d *Database) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Database) tablePointer() string {
	return "/" + jsonpointer.Escape(d.table)
}

func (d *Database) recordPointer(id string) string {
	return d.tablePointer() + "/" + jsonpointer.Escape(id)
}

func (d *Database) valuePointer(id string) string {
	return d.recordPointer(id) + strings.TrimSuffix(d.field, "/")
}

func (d *Database) find(ptr string) (*yaml.Node, error) {
	n, err := yptr.Find(&d.root, ptr)
	if errors.Is(err, yptr.ErrTooManyResults) {
		return nil, err
	} else if err != nil {
		return nil, &MissingFieldError{Pointer: ptr, err: err}
	}
	return n, nil
}

// overwrite replaces the content of dst with a deep copy of src.
// The comments and the anchor of dst are kept.
func overwrite(dst, src *yaml.Node) {
	for src.Kind == yaml.AliasNode && src.Alias != nil {
		src = src.Alias
	}
	c := clone(src)
	c.Anchor = dst.Anchor
	c.HeadComment, c.LineComment, c.FootComment = dst.HeadComment, dst.LineComment, dst.FootComment
	c.Line, c.Column = dst.Line, dst.Column
	*dst = *c
}

func clone(n *yaml.Node) *yaml.Node {
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i := range n.Content {
			c.Content[i] = clone(n.Content[i])
		}
	}
	return &c
}

// render returns the YAML text of a node, without the trailing newline.
// Comments and the anchor of n are not part of its value and are left out.
func render(n *yaml.Node) (string, error) {
	c := clone(n)
	c.Anchor = ""
	stripComments(c)
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

func stripComments(n *yaml.Node) {
	n.HeadComment, n.LineComment, n.FootComment = "", "", ""
	for _, c := range n.Content {
		stripComments(c)
	}
}
