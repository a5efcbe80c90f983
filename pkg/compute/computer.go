// Package compute implements the Computer: the façade tying together the
// Graph, the unit registry, and the operator library, per §3.4/§4.5-§4.7.
// It holds the graph, an optional default key, an ordered operator
// resolution stack (require_compat), a retry-policy stack for queued
// adds, and an opaque config sub-map — plus the domain-stack decorations
// (cache, event bus, tracer) layered on as optional, nil-safe fields set
// via functional options, using the familiar Option/With... pattern.
package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quantengine/pkg/cache"
	"quantengine/pkg/events"
	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/key"
	"quantengine/pkg/operator"
	"quantengine/pkg/telemetry"
	"quantengine/pkg/unit"
)

// Computer is the evaluation façade described in §3.4. Not safe for
// concurrent use by multiple goroutines without external synchronization
// (the Graph it wraps is not internally synchronized either) — per §5,
// callers needing concurrency run one Computer per goroutine.
type Computer struct {
	graph      *graph.Graph
	units      *unit.Registry
	ops        *operator.Registry
	defaultKey *key.Key
	config     map[string]graph.Value

	cache  cache.Loader
	bus    events.Bus
	tracer telemetry.Tracer
	logger *slog.Logger

	retryStack []retryFrame
}

type retryFrame struct {
	maxTries int
	fail     string
}

// Option configures a Computer at construction time.
type Option func(*Computer)

// WithUnitRegistry overrides the unit registry a Computer parses unit
// expressions against (default: unit.NewRegistry()).
func WithUnitRegistry(reg *unit.Registry) Option {
	return func(c *Computer) { c.units = reg }
}

// WithCache attaches the content-addressed loader cache collaborator.
func WithCache(l cache.Loader) Option {
	return func(c *Computer) { c.cache = l }
}

// WithBus attaches the graph-lifecycle event bus collaborator.
func WithBus(b events.Bus) Option {
	return func(c *Computer) { c.bus = b }
}

// WithTracer attaches the span-emitting tracer collaborator.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *Computer) { c.tracer = t }
}

// WithLogger overrides the structured logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Computer) { c.logger = l }
}

// NewComputer constructs a Computer with the builtin, unit, and I/O
// operator modules already pushed onto the resolution stack.
func NewComputer(opts ...Option) *Computer {
	c := &Computer{
		graph:  graph.New(),
		units:  unit.NewRegistry(),
		config: map[string]graph.Value{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ops = operator.NewRegistry()
	c.ops.Push("units", operator.UnitOperators(c.units))
	c.ops.Push("io", operator.IOOperators(c.units, c.cache))
	return c
}

// Units returns the Computer's unit registry, so callers (pkg/config's
// "units" section, cmd/ bootstrap) can Define/Replace against the same
// registry operators resolve unit expressions with.
func (c *Computer) Units() *unit.Registry { return c.units }

// RequireCompat appends a new operator module to the resolution stack.
// Later modules shadow earlier ones by operator name, per §4.5.
func (c *Computer) RequireCompat(name string, funcs map[string]graph.Func) {
	c.ops.Push(name, funcs)
}

// SetDefault sets the Key Get() resolves to when called with the zero Key.
func (c *Computer) SetDefault(k key.Key) { c.defaultKey = &k }

// SetConfig stores a value in the opaque config sub-map, which is never
// written into the Graph and so can never be interpreted as a task during
// evaluation — this is what §4.5's get(key) step 2 ("protect the config
// sub-dict") reduces to once config lives outside the graph entirely.
func (c *Computer) SetConfig(name string, v graph.Value) { c.config[name] = v }

// Config retrieves a value previously stored with SetConfig.
func (c *Computer) Config(name string) (graph.Value, bool) {
	v, ok := c.config[name]
	return v, ok
}

// resolveOperator looks up name in the operator stack, failing the way
// §4.5's eval describes an unresolvable operator name: a deterministic,
// non-retryable error.
func (c *Computer) resolveOperator(name string) (graph.Func, error) {
	fn, ok := c.ops.Lookup(name)
	if !ok {
		return nil, &graphtypes.TypeMismatchError{Context: "operator lookup", Want: "a registered operator name", Got: name}
	}
	return fn, nil
}

// canonicalize resolves every key a task depends on against the graph's
// indexes and returns the rewrite map RewriteTask expects, or a
// MissingKeyError listing every reference that could not be resolved.
func (c *Computer) canonicalize(t graph.Task) (map[string]key.Key, error) {
	canonical := map[string]key.Key{}
	var missing []string
	seen := map[string]struct{}{}
	for _, dep := range t.Dependencies() {
		if _, ok := seen[dep.Hash()]; ok {
			continue
		}
		seen[dep.Hash()] = struct{}{}
		resolved, ok := c.graph.Resolve(dep)
		if !ok {
			missing = append(missing, dep.String())
			continue
		}
		canonical[dep.Hash()] = resolved
	}
	if len(missing) > 0 {
		return nil, &graphtypes.MissingKeyError{Keys: missing}
	}
	return canonical, nil
}

// AddOptions configures one Add call.
type AddOptions struct {
	// Strict requires target to be absent, failing with KeyExistsError
	// otherwise — the zero value (false) allows silently overwriting an
	// existing key, matching genno's strict=False default; callers that
	// want §4.5's "strict=True forces the following contract checks" set
	// this explicitly. Every input key must resolve regardless of Strict
	// (MissingKeyError listing all absentees), since an Add whose inputs
	// don't exist can never be evaluated either way.
	Strict bool
	// Sums additionally registers every partial-sum key from
	// target.IterSums(), each bound to a sum() task over target with the
	// corresponding dims dropped, per §4.1's iter_sums and §4.5's
	// "with sums=True and a Key result, also queue all partial-sum keys."
	Sums bool
}

// Add inserts task at target, per §4.5's add contract. Go's static typing
// makes the Python original's "inspect the shape of data" dispatch moot —
// callers build the Task directly (see AddCall/AddLiteral/AddAlias/
// AddList below) rather than Add inferring it from a dynamic argument;
// this is the one deliberate adaptation from the distilled spec's dynamic
// dispatch to an idiomatic Go surface (see DESIGN.md).
func (c *Computer) Add(target key.Key, task graph.Task, opts AddOptions) (key.Key, error) {
	if opts.Strict && c.graph.Has(target) {
		return key.Key{}, &graphtypes.KeyExistsError{Key: target.String()}
	}
	canonical, err := c.canonicalize(task)
	if err != nil {
		return key.Key{}, err
	}
	rewritten := graph.RewriteTask(task, canonical)
	c.graph.Insert(target, rewritten)
	c.emit(events.TaskAdded, target.String(), "")

	if opts.Sums {
		if err := c.addPartialSums(target); err != nil {
			return key.Key{}, err
		}
	}
	return target, nil
}

// addPartialSums registers one sum() task per entry of target.IterSums().
func (c *Computer) addPartialSums(target key.Key) error {
	sumFn, err := c.resolveOperator("sum")
	if err != nil {
		return err
	}
	for _, ps := range target.IterSums() {
		dimsVal := graph.SequenceValue(stringsToValues(ps.DropDims))
		task := graph.CallTask("sum", sumFn, graph.KeyArg(ps.Source), graph.LiteralArg(graph.Value{}), graph.LiteralArg(dimsVal))
		if _, err := c.Add(ps.Key, task, AddOptions{Strict: false}); err != nil {
			return fmt.Errorf("add partial sum %s: %w", ps.Key.String(), err)
		}
	}
	return nil
}

func stringsToValues(ss []string) []graph.Value {
	out := make([]graph.Value, len(ss))
	for i, s := range ss {
		out[i] = graph.StringValue(s)
	}
	return out
}

// AddCall is a convenience over Add: resolves opName against the operator
// stack, builds a Call task from inputs (as Key references, in order)
// followed by extraArgs (as literals), and adds it at target.
func (c *Computer) AddCall(target key.Key, opName string, inputs []key.Key, extraArgs []graph.Value, opts AddOptions) (key.Key, error) {
	fn, err := c.resolveOperator(opName)
	if err != nil {
		return key.Key{}, err
	}
	args := make([]graph.Arg, 0, len(inputs)+len(extraArgs))
	for _, k := range inputs {
		args = append(args, graph.KeyArg(k))
	}
	for _, v := range extraArgs {
		args = append(args, graph.LiteralArg(v))
	}
	return c.Add(target, graph.CallTask(opName, fn, args...), opts)
}

// AddLiteral stores a bare Value at target.
func (c *Computer) AddLiteral(target key.Key, v graph.Value, opts AddOptions) (key.Key, error) {
	return c.Add(target, graph.LiteralTask(v), opts)
}

// AddAlias makes target resolve to whatever existing resolves to.
func (c *Computer) AddAlias(target, existing key.Key, opts AddOptions) (key.Key, error) {
	return c.Add(target, graph.AliasTask(existing), opts)
}

// AddList gathers keys into a Sequence Value at target.
func (c *Computer) AddList(target key.Key, keys []key.Key, opts AddOptions) (key.Key, error) {
	return c.Add(target, graph.KeyListTask(keys...), opts)
}

// Get resolves k (or the default key if k is the zero Key), culls its
// transitive dependencies, and evaluates them in topological order, per
// §4.5. Cull/evaluate errors (MissingKey, cycles, a wrapped
// ComputationError from a failing task) are returned as-is — deterministic
// failures are not retried by the engine, per §4.7.
func (c *Computer) Get(ctx context.Context, k key.Key) (graph.Value, error) {
	target := k
	if target.Name() == "" {
		if c.defaultKey == nil {
			return graph.Value{}, &graphtypes.MissingKeyError{Keys: []string{"<no key given and no default set>"}}
		}
		target = *c.defaultKey
	}

	var end func(error)
	if c.tracer != nil {
		ctx, end = c.tracer.StartSpan(ctx, "compute.get", target.String())
	}
	runID := uuid.NewString()

	plan, err := graph.Cull(c.graph, target)
	if err != nil {
		if end != nil {
			end(err)
		}
		return graph.Value{}, err
	}
	v, err := graph.Evaluate(c.graph, plan, target)
	if end != nil {
		end(err)
	}
	if err != nil {
		return graph.Value{}, err
	}
	c.logger.Debug("compute.get", "run_id", runID, "key", target.String())
	c.emit(events.KeyComputed, target.String(), runID)
	return v, nil
}

// Describe renders the task tree rooted at k.
func (c *Computer) Describe(k key.Key) string {
	return graph.Describe(c.graph, k)
}

func (c *Computer) emit(kind events.Kind, keyStr, detail string) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.Background(), events.NewEvent(kind, keyStr, detail, time.Now())); err != nil {
		c.logger.Warn("event publish failed", "kind", kind, "key", keyStr, "err", err)
	}
}
