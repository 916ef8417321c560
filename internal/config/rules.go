package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/wp-translations/internal/core"
)

// orderedRules decodes a mapping of pattern to template while keeping the
// order of the document. A value of false disables the pattern.
type orderedRules []core.NameRule

func (o *orderedRules) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*o = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("line %d: expected a mapping of rules", node.Line)
	}

	rules := make(orderedRules, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value == "" {
			return errors.Errorf("line %d: empty rule key", key.Line)
		}
		tpl, err := decodeTemplate(value)
		if err != nil {
			return errors.Wrapf(err, "rule %q", key.Value)
		}
		rules = append(rules, core.NameRule{Pattern: key.Value, Template: tpl})
	}
	*o = rules
	return nil
}

func decodeTemplate(node *yaml.Node) (core.Template, error) {
	if node.Kind != yaml.ScalarNode {
		return core.Template{}, errors.Errorf("line %d: expected a string or false", node.Line)
	}
	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return core.Template{}, err
		}
		if b {
			return core.Template{}, errors.Errorf("line %d: only false is allowed", node.Line)
		}
		return core.Disabled, nil
	case "!!null":
		return core.Disabled, nil
	}
	return core.T(node.Value), nil
}
