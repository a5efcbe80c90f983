package operator

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"quantengine/pkg/cache"
	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

// loadFileCacheTTL bounds how long a load_file result is trusted before a
// cache hit falls back to re-reading the source file.
const loadFileCacheTTL = 10 * time.Minute

// IOOperators returns the filesystem-backed operator module: load_file and
// write_report from §6.3/§4.4, closing over reg so a file's "unit" column
// and an explicit units argument can both be resolved against the
// Computer's registry. loader is consulted before a load_file read and
// populated after; a nil loader disables caching entirely.
func IOOperators(reg *unit.Registry, loader cache.Loader) map[string]graph.Func {
	return map[string]graph.Func{
		"load_file":    loadFile(reg, loader),
		"write_report": writeReport,
	}
}

// renameDimsCacheKey renders a rename mapping into a deterministic string
// so two calls with the same mapping (regardless of map iteration order)
// hash identically, and two calls with different mappings never collide.
func renameDimsCacheKey(renameDims map[string]string) string {
	if len(renameDims) == 0 {
		return ""
	}
	keys := make([]string, 0, len(renameDims))
	for k := range renameDims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renameDims[k])
		b.WriteByte(';')
	}
	return b.String()
}

// loadFile implements load_file(path, dims?, units?): reads a CSV with one
// column per dim plus "value" and an optional "unit" column, which must be
// homogeneous across rows. An explicit units argument must match the
// file's unit column when both are present. Before touching the
// filesystem, it consults loader (when non-nil) keyed on the call's own
// arguments, so a repeated load_file(path, ...) call across Computer
// instances can skip re-reading and re-parsing the same file.
func loadFile(reg *unit.Registry, loader cache.Loader) graph.Func {
	return func(args []graph.Value) (graph.Value, error) {
		if len(args) < 1 {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "load_file", Want: "at least 1 operand (path)", Got: "none"}
		}
		path, err := asString(args[0])
		if err != nil {
			return graph.Value{}, err
		}
		var renameDims map[string]string
		if len(args) >= 2 && !args[1].IsZero() {
			renameDims, err = asRenameMap(args[1])
			if err != nil {
				return graph.Value{}, err
			}
		}
		var explicitUnits string
		if len(args) >= 3 && !args[2].IsZero() {
			explicitUnits, err = asString(args[2])
			if err != nil {
				return graph.Value{}, err
			}
		}

		ctx := context.Background()
		argsHash := cache.HashArgs([]string{path, explicitUnits, renameDimsCacheKey(renameDims)})
		if loader != nil {
			if q, ok, err := loader.Get(ctx, "load_file", argsHash); err == nil && ok {
				return graph.QuantityValue(q), nil
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return graph.Value{}, err
		}
		defer f.Close()

		r := csv.NewReader(f)
		header, err := r.Read()
		if err != nil {
			return graph.Value{}, err
		}
		valueIdx, unitIdx := -1, -1
		var dims []string
		dimIdx := map[string]int{}
		for i, col := range header {
			switch col {
			case "value":
				valueIdx = i
			case "unit":
				unitIdx = i
			default:
				name := col
				if renameDims != nil {
					if nd, ok := renameDims[col]; ok {
						name = nd
					}
				}
				dims = append(dims, name)
				dimIdx[name] = i
			}
		}
		if valueIdx < 0 {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "load_file", Want: "a \"value\" column", Got: "none"}
		}

		var rows []quantity.Row
		var fileUnit string
		for {
			record, err := r.Read()
			if err != nil {
				break
			}
			coords := make(map[string]string, len(dims))
			for name, idx := range dimIdx {
				coords[name] = record[idx]
			}
			v, err := strconv.ParseFloat(record[valueIdx], 64)
			if err != nil {
				return graph.Value{}, &graphtypes.TypeMismatchError{Context: "load_file value column", Want: "numeric", Got: record[valueIdx]}
			}
			if unitIdx >= 0 {
				u := strings.TrimSpace(record[unitIdx])
				if fileUnit == "" {
					fileUnit = u
				} else if fileUnit != u {
					return graph.Value{}, &graphtypes.DimensionError{Reason: "load_file: non-unique units in " + filepath.Base(path)}
				}
			}
			rows = append(rows, quantity.Row{Coords: coords, Value: v})
		}

		unitExpr := fileUnit
		if explicitUnits != "" {
			if fileUnit != "" && explicitUnits != fileUnit {
				return graph.Value{}, &graphtypes.IncompatibleUnitsError{Left: explicitUnits, Right: fileUnit, Op: "load_file"}
			}
			unitExpr = explicitUnits
		}
		u, err := reg.Lookup(unitExpr)
		if err != nil {
			return graph.Value{}, err
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		q, err := quantity.FromRows(name, rows, dims, u)
		if err != nil {
			return graph.Value{}, err
		}
		if loader != nil {
			_ = loader.Put(ctx, "load_file", argsHash, q, loadFileCacheTTL)
		}
		return graph.QuantityValue(q), nil
	}
}

// writeReport implements write_report(obj, path): serializes a Quantity to
// CSV only. A path whose suffix is not .csv (XLSX included) is rejected
// with a TypeMismatchError.
func writeReport(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "write_report", Want: "exactly 2 operands", Got: "wrong arity"}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	path, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "write_report", Want: ".csv path", Got: path}
	}

	f, err := os.Create(path)
	if err != nil {
		return graph.Value{}, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append(append([]string(nil), q.Dims()...), "value", "unit")
	if err := w.Write(header); err != nil {
		return graph.Value{}, err
	}
	for _, row := range q.ToSeries() {
		record := make([]string, 0, len(header))
		for _, d := range q.Dims() {
			record = append(record, row.Coords[d])
		}
		record = append(record, strconv.FormatFloat(row.Value, 'g', -1, 64), q.Units().String())
		if err := w.Write(record); err != nil {
			return graph.Value{}, err
		}
	}
	return graph.Value{}, nil
}
