package fanfetch

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// MaxGridSize is the largest number of descriptors a single grid may expand
// to.
const MaxGridSize = 100_000

// ErrGridTooLarge is returned when a grid, or one of its ranges, would
// expand to more than [MaxGridSize] descriptors.
var ErrGridTooLarge = errors.New("grid too large")

// RangeSize returns how many integers first..last holds, and false when
// that exceeds [MaxGridSize]. last must not be less than first.
func RangeSize(first, last int) (int, bool) {
	// unsigned subtraction is exact even when last-first overflows int
	span := uint64(last) - uint64(first)
	if span >= MaxGridSize {
		return 0, false
	}
	return int(span) + 1, true
}

// GridSize returns the product of the given dimension sizes, and false
// when it exceeds [MaxGridSize]. Any size below one yields (0, true).
func GridSize(sizes ...int) (int, bool) {
	total := 1
	for _, n := range sizes {
		if n < 1 {
			return 0, true
		}
		if n > MaxGridSize/total {
			return 0, false
		}
		total *= n
	}
	return total, true
}

// NewDescriptorGrid expands a URL template over every combination of
// dimension values and returns one [Descriptor] per combination.
//
// Grids are the usual way to build a large fan-out, such as every page of
// every shard, from a single declaration. The returned slice is in a
// deterministic order: dimension keys are sorted, the last key varies
// fastest, and values keep the order they were given in.
//
// A grid expands to at most [MaxGridSize] descriptors; larger grids fail
// with [ErrGridTooLarge] before anything is allocated.
//
// The URL template uses text/template syntax. Values are query-escaped
// before interpolation and a template key with no dimension is an error.
//
// Descriptor names have the form "Base (v1/v2)", values ordered by key.
// Each descriptor is labelled with its dimension values; static labels from
// [WithGridLabels] win on collision.
//
// Example:
//
//	descriptors, err := NewDescriptorGrid("Orders",
//	    WithURLTemplate("https://api.com/orders?region={{.region}}&page={{.page}}"),
//	    WithDimensions(map[string][]string{"region": {"us-east", "eu-west"}}),
//	    WithRangeDimension("page", 1, 20),
//	)
//	// 40 descriptors, ready for Dispatcher.Dispatch
func NewDescriptorGrid(baseName string, opts ...GridOption) ([]Descriptor, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
		headers:      make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	sizes := make([]int, 0, len(cfg.dimensions))
	for _, vals := range cfg.dimensions {
		sizes = append(sizes, len(vals))
	}
	if _, ok := GridSize(sizes...); !ok {
		return nil, fmt.Errorf("%w: more than %d combinations", ErrGridTooLarge, MaxGridSize)
	}

	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	shared := cfg.descriptorOptions()
	combos := cartesianProduct(cfg.dimensions)
	descriptors := make([]Descriptor, 0, len(combos))
	for _, combo := range combos {
		d, err := cfg.render(tmpl, baseName, combo, shared)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// descriptorOptions returns the options every grid descriptor shares.
func (cfg *gridConfig) descriptorOptions() []DescriptorOption {
	var opts []DescriptorOption
	if len(cfg.headers) > 0 {
		opts = append(opts, WithHeaders(flattenMap(cfg.headers)...))
	}
	if cfg.timeout > 0 {
		opts = append(opts, WithTimeout(cfg.timeout))
	}
	if cfg.method != "" {
		opts = append(opts, WithMethod(cfg.method))
	}
	return opts
}

// render builds the descriptor for one combination of dimension values.
func (cfg *gridConfig) render(tmpl *template.Template, baseName string, combo map[string]string, shared []DescriptorOption) (Descriptor, error) {
	escaped := make(map[string]string, len(combo))
	for k, v := range combo {
		escaped[k] = url.QueryEscape(v)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, escaped); err != nil {
		return Descriptor{}, fmt.Errorf("template execution failed: %w", err)
	}

	name := formatDescriptorName(baseName, combo)
	labels := mergeMaps(combo, cfg.staticLabels)
	opts := append([]DescriptorOption{WithLabels(flattenMap(labels)...)}, shared...)

	d, err := NewDescriptor(name, buf.String(), opts...)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to create descriptor '%s': %w", name, err)
	}
	return d, nil
}

// cartesianProduct returns every combination of dimension values.
//
// Keys are sorted and the last key varies fastest; each key's values keep
// their slice order. An empty map, any dimension without values, or more
// than [MaxGridSize] combinations yields nil.
//
//	{"x": ["a","b"], "y": ["1","2"]}
//	=> [{x:a y:1} {x:a y:2} {x:b y:1} {x:b y:2}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedDimensionKeys(dims)
	sizes := make([]int, len(keys))
	for i, k := range keys {
		sizes[i] = len(dims[k])
	}
	total, ok := GridSize(sizes...)
	if !ok || total == 0 {
		return nil
	}

	// treat n as a mixed-radix number, one digit per key
	result := make([]map[string]string, total)
	for n := 0; n < total; n++ {
		combo := make(map[string]string, len(keys))
		rest := n
		for i := len(keys) - 1; i >= 0; i-- {
			vals := dims[keys[i]]
			combo[keys[i]] = vals[rest%len(vals)]
			rest /= len(vals)
		}
		result[n] = combo
	}
	return result
}

func sortedDimensionKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDescriptorName returns "Base (v1/v2)" with values ordered by key.
func formatDescriptorName(baseName string, combo map[string]string) string {
	keys := sortedDimensionKeys(combo)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return baseName + " (" + strings.Join(parts, "/") + ")"
}

// mergeMaps merges maps left to right; later maps win.
func mergeMaps(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// flattenMap converts a map into sorted key-value pairs for the variadic
// label and header options.
func flattenMap(m map[string]string) []string {
	result := make([]string, 0, len(m)*2)
	for _, k := range sortedDimensionKeys(m) {
		result = append(result, k, m[k])
	}
	return result
}
