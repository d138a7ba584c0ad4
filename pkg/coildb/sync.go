// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package coildb

import (
	"fmt"
	"strings"

	yamled "github.com/vmware-labs/go-yaml-edit"
	"github.com/vmware-labs/go-yaml-edit/splice"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"coilsync.io/pkg/rwfile"
)

const (
	// DefaultPath is the coil data file of the simulator test flow.
	DefaultPath = "test/flow.coil.data"
	// DefaultSrc is the power led button.
	DefaultSrc = "10006"
	// DefaultDst is the power led state.
	DefaultDst = "10005"
)

// A Rule copies the value of the Src record into the Dst record.
type Rule struct {
	Src string
	Dst string
}

// Mode selects how the edited document is written out.
type Mode int

const (
	// Reencode serializes the whole edited document.
	Reencode Mode = iota
	// Preserve replaces only the text of the destination scalars.
	Preserve
)

func (m Mode) String() string {
	switch m {
	case Reencode:
		return "reencode"
	case Preserve:
		return "preserve"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// A Syncer applies a list of rules to a document.
// Rules are applied in order, so a rule sees the effect of the previous ones.
type Syncer struct {
	Table string
	Field string
	Rules []Rule
	Mode  Mode

	changes []Change
}

// Apply returns a copy of src with all the rules applied.
// If any rule cannot be resolved, no output is produced.
func (s *Syncer) Apply(src []byte) ([]byte, error) {
	s.changes = nil

	d, err := Parse(src, s.Table, s.Field)
	if err != nil {
		return nil, err
	}

	var (
		changes []Change
		sp      = newSplicer()
	)
	for _, r := range s.Rules {
		if s.Mode == Preserve {
			if err := sp.mark(d, r); err != nil {
				return nil, err
			}
		}
		c, err := d.Copy(r.Src, r.Dst)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	var out []byte
	switch s.Mode {
	case Reencode:
		out, err = d.Encode()
	case Preserve:
		out, err = sp.apply(d, src)
	default:
		err = fmt.Errorf("unknown mode %v", s.Mode)
	}
	if err != nil {
		return nil, err
	}

	s.changes = changes
	return out, nil
}

// Changes returns the changes performed by the last successful Apply.
func (s *Syncer) Changes() []Change {
	return s.changes
}

// Transformer returns a transform.Transformer that applies the rules.
func (s *Syncer) Transformer() transform.Transformer {
	return NewTransformer(s.Apply)
}

// Config holds the parameters of Sync.
type Config struct {
	Path   string
	Table  string
	Field  string
	Rules  []Rule
	Mode   Mode
	Atomic bool
}

// DefaultConfig returns a configuration that sets the power led state
// with the value of the power led button.
func DefaultConfig() Config {
	return Config{
		Path:  DefaultPath,
		Table: DefaultTable,
		Field: DefaultField,
		Rules: []Rule{{Src: DefaultSrc, Dst: DefaultDst}},
	}
}

// Syncer returns a Syncer configured with c.
func (c Config) Syncer() *Syncer {
	return &Syncer{Table: c.Table, Field: c.Field, Rules: c.Rules, Mode: c.Mode}
}

// Sync applies the configured rules to the file at c.Path and rewrites it.
// Nothing is written if a rule cannot be resolved.
func Sync(c Config) ([]Change, error) {
	s := c.Syncer()
	if err := c.Rewrite(s.Transformer()); err != nil {
		return nil, err
	}
	return s.Changes(), nil
}

// Rewrite passes the content of the file at c.Path through t and writes the result back,
// in place or atomically according to c.Atomic.
func (c Config) Rewrite(t transform.Transformer) error {
	write := rwfile.InPlace
	if c.Atomic {
		write = rwfile.Atomic
	}
	if err := write(c.Path, t); err != nil {
		return fmt.Errorf("syncing %q: %w", c.Path, err)
	}
	return nil
}

// A splicer collects the original position of every destination scalar,
// so that they can be replaced after the tree has been edited.
type splicer struct {
	edits map[*yaml.Node]*edit
	order []*edit
}

type edit struct {
	id   string
	node *yaml.Node
	with func(string) splice.Op
	flow bool
}

func newSplicer() *splicer {
	return &splicer{edits: map[*yaml.Node]*edit{}}
}

func (sp *splicer) mark(d *Database, r Rule) error {
	s, err := d.Value(r.Src)
	if err != nil {
		return err
	}
	t, err := d.Value(r.Dst)
	if err != nil {
		return err
	}
	for s.Kind == yaml.AliasNode && s.Alias != nil {
		s = s.Alias
	}
	if s.Kind != yaml.ScalarNode {
		return fmt.Errorf("source %s: %w", r.Src, ErrNotScalar)
	}
	if t.Kind != yaml.ScalarNode {
		return fmt.Errorf("destination %s: %w", r.Dst, ErrNotScalar)
	}

	if _, ok := sp.edits[t]; !ok {
		_, flow := inFlow(&d.root, t, false)
		e := &edit{id: r.Dst, node: t, with: yamled.Node(t).With, flow: flow}
		sp.edits[t] = e
		sp.order = append(sp.order, e)
	}
	return nil
}

func (sp *splicer) apply(d *Database, src []byte) ([]byte, error) {
	var ops []splice.Op
	for _, e := range sp.order {
		v, err := scalarText(e.node, e.flow)
		if err != nil {
			return nil, err
		}
		ops = append(ops, e.with(v))
	}
	b, _, err := transform.Bytes(splice.T(ops...), src)
	if err != nil {
		return nil, err
	}
	if err := sp.check(d, b); err != nil {
		return nil, err
	}
	return b, nil
}

// check parses the spliced document and verifies that every destination
// reads back as the value it was given.
func (sp *splicer) check(d *Database, out []byte) error {
	got, err := Parse(out, d.table, d.field)
	if err != nil {
		return fmt.Errorf("spliced document: %w", err)
	}
	for _, e := range sp.order {
		n, err := got.Value(e.id)
		if err != nil {
			return fmt.Errorf("spliced document: %w", err)
		}
		if n.Kind != yaml.ScalarNode || n.ShortTag() != e.node.ShortTag() || n.Value != e.node.Value {
			return fmt.Errorf("spliced value of %s reads back as %s %q, want %s %q", e.id, n.ShortTag(), n.Value, e.node.ShortTag(), e.node.Value)
		}
	}
	return nil
}

// inFlow reports whether target is found under n and whether it sits inside a flow collection.
func inFlow(n, target *yaml.Node, flow bool) (found, res bool) {
	if n == target {
		return true, flow
	}
	flow = flow || n.Style&yaml.FlowStyle != 0
	for _, c := range n.Content {
		if ok, f := inFlow(c, target, flow); ok {
			return true, f
		}
	}
	return false, false
}

// scalarText renders a scalar so that it fits in the place of another scalar.
// Block scalars are turned into double quoted ones since they can't be inlined,
// and so are plain scalars holding flow indicators when the target is in a flow collection.
func scalarText(n *yaml.Node, flow bool) (string, error) {
	c := *n
	if c.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		c.Style = yaml.DoubleQuotedStyle
	}
	if flow && c.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 && strings.ContainsAny(c.Value, ",[]{}") {
		c.Style = yaml.DoubleQuotedStyle
	}
	return render(&c)
}
