package compute

import (
	"fmt"

	"quantengine/pkg/config"
	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/key"
)

func missingKeyErrorFor(k key.Key) *graphtypes.MissingKeyError {
	return &graphtypes.MissingKeyError{Keys: []string{k.String()}}
}

// LoadConfig materializes every recognized section of cfg against c, per
// §6.2: "units" is applied immediately (it must be in place before any
// other section's operator calls run), everything else is queued through
// AddQueue so that sections can reference each other regardless of the
// order they appear in the file — a "general" entry computed from a
// "files" entry defined later in the same document still resolves, at the
// cost of one retry pass.
func (c *Computer) LoadConfig(cfg *config.Config) error {
	if cfg.Units != nil {
		if cfg.Units.Define != "" {
			if err := c.units.Define(cfg.Units.Define); err != nil {
				return fmt.Errorf("config units.define: %w", err)
			}
		}
		if len(cfg.Units.Replace) > 0 {
			if err := c.units.Replace(cfg.Units.Replace); err != nil {
				return fmt.Errorf("config units.replace: %w", err)
			}
		}
	}
	if cfg.Default != "" {
		k, err := key.Parse(cfg.Default)
		if err != nil {
			return fmt.Errorf("config default: %w", err)
		}
		c.SetDefault(k)
	}

	var items []QueueItem
	for _, f := range cfg.Files {
		f := f
		items = append(items, QueueItem{Label: "files:" + f.Key, Attempt: func(c *Computer) error {
			return c.loadFileSection(f)
		}})
	}
	for _, a := range cfg.Alias {
		a := a
		items = append(items, QueueItem{Label: "alias:" + a.New, Attempt: func(c *Computer) error {
			return c.aliasSection(a)
		}})
	}
	for _, agg := range cfg.Aggregate {
		agg := agg
		items = append(items, QueueItem{Label: "aggregate:" + agg.Tag, Attempt: func(c *Computer) error {
			return c.aggregateSection(agg)
		}})
	}
	for _, cb := range cfg.Combine {
		cb := cb
		items = append(items, QueueItem{Label: "combine:" + cb.Key, Attempt: func(c *Computer) error {
			return c.combineSection(cb)
		}})
	}
	for _, g := range cfg.General {
		g := g
		items = append(items, QueueItem{Label: "general:" + g.Key, Attempt: func(c *Computer) error {
			return c.generalSection(g)
		}})
	}
	if cfg.Report != nil {
		r := *cfg.Report
		items = append(items, QueueItem{Label: "report:" + r.Key, Attempt: func(c *Computer) error {
			return c.reportSection(r)
		}})
	}

	return c.AddQueue(items, 10, "raise")
}

func (c *Computer) loadFileSection(f config.FileSpec) error {
	target, err := key.Parse(f.Key)
	if err != nil {
		return fmt.Errorf("files[%s]: %w", f.Key, err)
	}
	var renameArg graph.Value
	if len(f.Dims) > 0 {
		m := make(map[string]graph.Value, len(f.Dims))
		for k, v := range f.Dims {
			m[k] = graph.StringValue(v)
		}
		renameArg = graph.MappingValue(m)
	}
	extra := []graph.Value{graph.StringValue(f.Path), renameArg}
	if f.Units != "" {
		extra = append(extra, graph.StringValue(f.Units))
	}
	_, err = c.AddCall(target, "load_file", nil, extra, AddOptions{Strict: false})
	return err
}

func (c *Computer) aliasSection(a config.AliasEntry) error {
	existing, err := key.Parse(a.Existing)
	if err != nil {
		return fmt.Errorf("alias existing %q: %w", a.Existing, err)
	}
	resolved, ok := c.graph.Resolve(existing)
	if !ok {
		return fmt.Errorf("alias: %w", missingKeyErrorFor(existing))
	}
	target, err := key.Parse(a.New)
	if err != nil {
		return fmt.Errorf("alias new %q: %w", a.New, err)
	}
	_, err = c.AddAlias(target, resolved, AddOptions{Strict: false})
	return err
}

func (c *Computer) aggregateSection(agg config.AggregateSpec) error {
	groups := make(map[string]graph.Value, 1)
	byLabel := make(map[string]graph.Value, len(agg.Groups))
	for newLabel, oldLabels := range agg.Groups {
		byLabel[newLabel] = graph.SequenceValue(stringsToValues(oldLabels))
	}
	groups[agg.Dim] = graph.MappingValue(byLabel)
	groupsArg := graph.MappingValue(groups)

	for _, name := range agg.Quantities {
		source, ok := c.graph.FullKey(name)
		if !ok {
			return fmt.Errorf("aggregate: %w", missingKeyErrorFor(key.New(name, nil, "")))
		}
		target := source.AddTag(agg.Tag)
		_, err := c.AddCall(target, "aggregate", []key.Key{source}, []graph.Value{groupsArg, graph.ScalarValue(0)}, AddOptions{Strict: false})
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", target.String(), err)
		}
	}
	return nil
}

func (c *Computer) combineSection(cb config.CombineSpec) error {
	target, err := key.Parse(cb.Key)
	if err != nil {
		return fmt.Errorf("combine %s: %w", cb.Key, err)
	}
	inputs := make([]key.Key, 0, len(cb.Inputs))
	specs := make([]graph.Value, 0, len(cb.Inputs))
	for _, in := range cb.Inputs {
		src, err := key.Parse(in.Quantity)
		if err != nil {
			return fmt.Errorf("combine %s input %q: %w", cb.Key, in.Quantity, err)
		}
		resolved, ok := c.graph.Resolve(src)
		if !ok {
			return fmt.Errorf("combine %s: %w", cb.Key, missingKeyErrorFor(src))
		}
		inputs = append(inputs, resolved)

		spec := map[string]graph.Value{}
		if len(in.Select) > 0 {
			sel := make(map[string]graph.Value, len(in.Select))
			for dim, labels := range in.Select {
				sel[dim] = graph.SequenceValue(stringsToValues(labels))
			}
			spec["select"] = graph.MappingValue(sel)
		}
		if in.Weight != nil {
			spec["weight"] = graph.ScalarValue(*in.Weight)
		}
		specs = append(specs, graph.MappingValue(spec))
	}
	fn, err := c.resolveOperator("combine")
	if err != nil {
		return err
	}
	args := make([]graph.Arg, 0, len(inputs)+1)
	args = append(args, graph.LiteralArg(graph.SequenceValue(specs)))
	for _, k := range inputs {
		args = append(args, graph.KeyArg(k))
	}
	_, err = c.Add(target, graph.CallTask("combine", fn, args...), AddOptions{Strict: false})
	return err
}

func (c *Computer) generalSection(g config.GeneralSpec) error {
	target, err := key.Parse(g.Key)
	if err != nil {
		return fmt.Errorf("general %s: %w", g.Key, err)
	}
	inputs := make([]key.Key, 0, len(g.Inputs))
	for _, name := range g.Inputs {
		src, err := key.Parse(name)
		if err != nil {
			return fmt.Errorf("general %s input %q: %w", g.Key, name, err)
		}
		resolved, ok := c.graph.Resolve(src)
		if !ok {
			return fmt.Errorf("general %s: %w", g.Key, missingKeyErrorFor(src))
		}
		inputs = append(inputs, resolved)
	}
	extra := make([]graph.Value, 0, len(g.Args))
	for _, a := range g.Args {
		extra = append(extra, anyToValue(a))
	}
	_, err = c.AddCall(target, g.Comp, inputs, extra, AddOptions{Strict: false, Sums: g.Sums})
	return err
}

func (c *Computer) reportSection(r config.ReportSpec) error {
	target, err := key.Parse(r.Key)
	if err != nil {
		return fmt.Errorf("report %s: %w", r.Key, err)
	}
	keys := make([]key.Key, 0, len(r.Members))
	for _, name := range r.Members {
		src, err := key.Parse(name)
		if err != nil {
			return fmt.Errorf("report member %q: %w", name, err)
		}
		resolved, ok := c.graph.Resolve(src)
		if !ok {
			return fmt.Errorf("report: %w", missingKeyErrorFor(src))
		}
		keys = append(keys, resolved)
	}
	_, err = c.AddList(target, keys, AddOptions{Strict: false})
	return err
}

func anyToValue(a interface{}) graph.Value {
	switch v := a.(type) {
	case string:
		return graph.StringValue(v)
	case float64:
		return graph.ScalarValue(v)
	case int:
		return graph.ScalarValue(float64(v))
	case bool:
		if v {
			return graph.ScalarValue(1)
		}
		return graph.ScalarValue(0)
	case []interface{}:
		vs := make([]graph.Value, len(v))
		for i, e := range v {
			vs[i] = anyToValue(e)
		}
		return graph.SequenceValue(vs)
	case map[string]interface{}:
		m := make(map[string]graph.Value, len(v))
		for k, e := range v {
			m[k] = anyToValue(e)
		}
		return graph.MappingValue(m)
	default:
		return graph.Value{}
	}
}
