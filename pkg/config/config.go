// Package config parses the YAML configuration file described in §6.2: a
// top-level mapping of section name to payload, recognized sections
// (units, default, files, alias, aggregate, combine, general, report,
// iamc) materialized into typed values a caller (cmd/quantengine) feeds
// to Computer.AddQueue. Unknown sections are logged and ignored rather
// than rejected, per §6.2.
//
// Grounded on awsqed-config-formatter's dockercompose.go, which walks a
// yaml.Node tree to classify and reshape sections; this package takes the
// simpler route of decoding each recognized top-level key into its own
// typed struct via gopkg.in/yaml.v3, since the sections here have a fixed
// vocabulary rather than arbitrary user documents.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// UnitsSection is the "units" section: global unit definitions applied
// immediately at load time.
type UnitsSection struct {
	Define  string            `yaml:"define"`
	Replace map[string]string `yaml:"replace"`
}

// FileSpec is one "files" entry: register a load task.
type FileSpec struct {
	Path  string            `yaml:"path"`
	Key   string            `yaml:"key"`
	Dims  map[string]string `yaml:"dims"`
	Units string            `yaml:"units"`
}

// AliasEntry is one "alias" entry, accepted either as a [old, new] pair or
// as a {old: new} single-entry mapping.
type AliasEntry struct {
	Existing string
	New      string
}

func (a *AliasEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("alias entry: expected [existing, new], got %d elements", len(pair))
		}
		a.Existing, a.New = pair[0], pair[1]
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		if len(m) != 1 {
			return fmt.Errorf("alias entry: expected exactly one key, got %d", len(m))
		}
		for k, v := range m {
			a.Existing, a.New = k, v
		}
		return nil
	default:
		return fmt.Errorf("alias entry: unsupported YAML node kind %v", node.Kind)
	}
}

// AggregateSpec is one "aggregate" list entry: _quantities/_tag/_dim are
// fixed fields, everything else is a {new_label: [old_labels]} group.
type AggregateSpec struct {
	Quantities []string            `yaml:"_quantities"`
	Tag        string              `yaml:"_tag"`
	Dim        string              `yaml:"_dim"`
	Groups     map[string][]string `yaml:",inline"`
}

// CombineInput is one input of a "combine" entry.
type CombineInput struct {
	Quantity string              `yaml:"quantity"`
	Select   map[string][]string `yaml:"select"`
	Weight   *float64            `yaml:"weight"`
}

// CombineSpec is one "combine" list entry.
type CombineSpec struct {
	Key    string         `yaml:"key"`
	Inputs []CombineInput `yaml:"inputs"`
}

// GeneralSpec is one "general" list entry: an arbitrary operator call.
type GeneralSpec struct {
	Comp   string        `yaml:"comp"`
	Key    string        `yaml:"key"`
	Inputs []string      `yaml:"inputs"`
	Args   []interface{} `yaml:"args"`
	Sums   bool          `yaml:"sums"`
}

// ReportSpec is the "report" section: concatenate members into key.
type ReportSpec struct {
	Key     string   `yaml:"key"`
	Members []string `yaml:"members"`
}

// Config is every recognized section of one configuration file. Each
// populated slice/pointer corresponds 1:1 to the §6.2 section table.
type Config struct {
	Units     *UnitsSection
	Default   string
	Files     []FileSpec
	Alias     []AliasEntry
	Aggregate []AggregateSpec
	Combine   []CombineSpec
	General   []GeneralSpec
	Report    *ReportSpec
	// IAMC is carried as raw YAML since it is an external-collaborator
	// stub per §6.2 ("optional adapter section") — pkg/config never
	// interprets it.
	IAMC *yaml.Node
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a Config, warning on (and skipping)
// any top-level key outside the recognized section vocabulary.
func Parse(raw []byte) (*Config, error) {
	var root map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{}
	for name, node := range root {
		node := node
		var err error
		switch name {
		case "units":
			cfg.Units = &UnitsSection{}
			err = node.Decode(cfg.Units)
		case "default":
			err = node.Decode(&cfg.Default)
		case "files":
			err = node.Decode(&cfg.Files)
		case "alias":
			err = node.Decode(&cfg.Alias)
		case "aggregate":
			err = node.Decode(&cfg.Aggregate)
		case "combine":
			err = node.Decode(&cfg.Combine)
		case "general":
			err = node.Decode(&cfg.General)
		case "report":
			cfg.Report = &ReportSpec{}
			err = node.Decode(cfg.Report)
		case "iamc":
			n := node
			cfg.IAMC = &n
		default:
			slog.Warn("config: unrecognized section, ignoring", "section", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config section %q: %w", name, err)
		}
	}
	return cfg, nil
}
