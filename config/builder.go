package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/fanfetch"
)

// BuildDescriptors converts parsed configuration into SDK descriptors.
//
// Direct descriptors come first in file order, followed by each grid's
// expansion. The global timeout applies wherever no timeout is set.
func BuildDescriptors(cfg *Config) ([]fanfetch.Descriptor, error) {
	var descriptors []fanfetch.Descriptor

	for _, dc := range cfg.Descriptors {
		d, err := buildDescriptor(dc, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("descriptor (%s): %w", dc.Name, err)
		}
		descriptors = append(descriptors, d)
	}

	for _, gc := range cfg.Grids {
		expanded, err := buildGrid(gc, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("grid (%s): %w", gc.Name, err)
		}
		descriptors = append(descriptors, expanded...)
	}

	return descriptors, nil
}

// Options returns the dispatcher options the configuration implies.
func Options(cfg *Config) []fanfetch.Option {
	return []fanfetch.Option{
		fanfetch.WithCapacity(cfg.Capacity),
		fanfetch.WithPort(cfg.Port),
	}
}

// buildDescriptor converts a single DescriptorConfig to an SDK Descriptor.
func buildDescriptor(dc DescriptorConfig, defaultTimeout Duration) (fanfetch.Descriptor, error) {
	var opts []fanfetch.DescriptorOption

	timeout := dc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout > 0 {
		opts = append(opts, fanfetch.WithTimeout(timeout.Duration()))
	}
	if dc.Method != "" {
		opts = append(opts, fanfetch.WithMethod(dc.Method))
	}
	if len(dc.Headers) > 0 {
		opts = append(opts, fanfetch.WithHeaders(mapToKeyValuePairs(dc.Headers)...))
	}
	if len(dc.Labels) > 0 {
		opts = append(opts, fanfetch.WithLabels(mapToKeyValuePairs(dc.Labels)...))
	}

	return fanfetch.NewDescriptor(dc.Name, dc.URL, opts...)
}

// buildGrid expands a GridConfig through the SDK grid builder.
func buildGrid(gc GridConfig, defaultTimeout Duration) ([]fanfetch.Descriptor, error) {
	timeout := gc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	opts := []fanfetch.GridOption{
		fanfetch.WithURLTemplate(gc.URLTemplate),
		fanfetch.WithGridTimeout(timeout.Duration()),
	}

	if len(gc.Dimensions) > 0 {
		opts = append(opts, fanfetch.WithDimensions(gc.Dimensions))
	}
	for _, name := range sortedKeys(gc.Ranges) {
		r := gc.Ranges[name]
		opts = append(opts, fanfetch.WithRangeDimension(name, r.From, r.To))
	}
	if gc.Method != "" {
		opts = append(opts, fanfetch.WithGridMethod(gc.Method))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, fanfetch.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, fanfetch.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}

	return fanfetch.NewDescriptorGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := sortedKeys(m)
	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
