package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

//go:embed default.yaml
var defaultYAML []byte

var loadDefault = sync.OnceValues(func() (*Table, error) {
	return Load(bytes.NewReader(defaultYAML))
})

// Default returns the built-in table. It is parsed on first use and shared.
func Default() *Table {
	t, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded policy table: %v", err))
	}
	return t
}

// tableFile is the YAML layout of a policy table.
type tableFile struct {
	Version int                 `yaml:"version"`
	Types   map[string]typeFile `yaml:"types"`
}

type typeFile struct {
	Writable   []string            `yaml:"writable"`
	Rules      map[string]ruleFile `yaml:"rules"`
	References map[string]string   `yaml:"references"`
	Create     []string            `yaml:"create"`
}

type ruleFile struct {
	Equals    *fieldValue  `yaml:"equals"`
	NotEquals *fieldValue  `yaml:"not_equals"`
	In        *fieldValues `yaml:"in"`
	Present   string       `yaml:"present"`
}

type fieldValue struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

type fieldValues struct {
	Field  string   `yaml:"field"`
	Values []string `yaml:"values"`
}

// LoadFile reads a policy table from a YAML file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening policy %s: %w", path, err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return t, nil
}

// Load parses and validates a YAML policy table. Unknown keys are rejected
// so a typo in a rule cannot silently disable it.
func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc tableFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty policy document", util.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}

	v := &util.ValidationBuilder{}
	v.Add(doc.Version == 1, fmt.Sprintf("unsupported policy version %d", doc.Version))
	v.Add(len(doc.Types) > 0, "policy declares no object types")

	var policies []*TypePolicy
	for name, tf := range doc.Types {
		typ := snapshot.ObjectType(name)

		rules := make(map[string]Rule, len(tf.Rules))
		for field, rf := range tf.Rules {
			rule, err := rf.compile()
			if err != nil {
				v.AddErrorf("%s.rules.%s: %v", name, field, err)
				continue
			}
			rules[field] = rule
		}

		refs := make(map[string]snapshot.ObjectType, len(tf.References))
		for field, target := range tf.References {
			if _, ok := doc.Types[target]; !ok {
				v.AddErrorf("%s.references.%s: unknown target type %q", name, field, target)
				continue
			}
			refs[field] = snapshot.ObjectType(target)
		}

		policies = append(policies, NewTypePolicy(typ, tf.Writable, rules, refs, tf.Create))
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return NewTable(policies...), nil
}

func (rf ruleFile) compile() (Rule, error) {
	var rule Rule
	kinds := 0
	if rf.Equals != nil {
		kinds++
		if rf.Equals.Field == "" {
			return nil, fmt.Errorf("equals: field required")
		}
		rule = FieldEquals(rf.Equals.Field, rf.Equals.Value)
	}
	if rf.NotEquals != nil {
		kinds++
		if rf.NotEquals.Field == "" {
			return nil, fmt.Errorf("not_equals: field required")
		}
		rule = FieldNotEquals(rf.NotEquals.Field, rf.NotEquals.Value)
	}
	if rf.In != nil {
		kinds++
		if rf.In.Field == "" || len(rf.In.Values) == 0 {
			return nil, fmt.Errorf("in: field and values required")
		}
		rule = FieldIn(rf.In.Field, rf.In.Values...)
	}
	if rf.Present != "" {
		kinds++
		rule = FieldPresent(rf.Present)
	}
	if kinds != 1 {
		return nil, fmt.Errorf("exactly one of equals, not_equals, in, present required")
	}
	return rule, nil
}
