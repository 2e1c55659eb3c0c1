// Package config provides YAML configuration parsing for fanfetch.
//
// This package enables running fanfetch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	capacity: 16
//	timeout: 5s
//
//	descriptors:
//	  - name: user 42
//	    url: https://api.example.com/users/42
//	    headers:
//	      Authorization: "Bearer ${API_TOKEN}"
//
//	grids:
//	  - name: Items
//	    url_template: "https://api.example.com/{{.shard}}/items?page={{.page}}"
//	    dimensions:
//	      shard: [a, b]
//	    ranges:
//	      page: {from: 1, to: 20}
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"text/template"
	"time"

	"github.com/jpalmerr/fanfetch"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort = 8080

	// minTimeout keeps configured per-request timeouts out of the range
	// where every request would fail on scheduling jitter alone.
	minTimeout = 1 * time.Second
)

// Config is the root configuration structure for fanfetch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is shown in CLI output and logs. Optional.
	Title string `yaml:"title"`

	// Port is the HTTP port used by `fanfetch serve`. Defaults to 8080.
	Port int `yaml:"port"`

	// Capacity bounds concurrent fetches. 0 (the default) is unbounded.
	Capacity int `yaml:"capacity"`

	// Timeout is the default per-request timeout, applied to descriptors
	// and grids that do not set their own. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Descriptors defines individual requests.
	Descriptors []DescriptorConfig `yaml:"descriptors"`

	// Grids defines descriptor grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// DescriptorConfig defines a single request.
type DescriptorConfig struct {
	// Name identifies the request in reports.
	Name string `yaml:"name"`

	// URL is the request URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `yaml:"method"`

	// Timeout overrides the global timeout for this request.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with the request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Labels are metadata key-value pairs carried into the report.
	Labels map[string]string `yaml:"labels"`
}

// GridConfig defines a descriptor grid that expands via cartesian product.
//
// For example, with dimensions {shard: [a, b]} and ranges {page: 1..3},
// the grid expands to 6 descriptors.
type GridConfig struct {
	// Name is the base name for generated descriptors.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating URLs.
	// Dimension keys are available as template variables: {{.shard}}, {{.page}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Ranges maps dimension names to inclusive integer ranges.
	Ranges map[string]RangeConfig `yaml:"ranges"`

	// Method is the HTTP method for all generated descriptors.
	Method string `yaml:"method"`

	// Timeout overrides the global timeout for all generated descriptors.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers for all generated descriptors.
	Headers map[string]string `yaml:"headers"`

	// Labels are additional labels applied to all generated descriptors.
	// These are merged with auto-generated dimension labels.
	Labels map[string]string `yaml:"labels"`
}

// sizes returns the number of values of each dimension and range. Ranges
// must already be known to fit [fanfetch.RangeSize].
func (g *GridConfig) sizes() []int {
	sizes := make([]int, 0, len(g.Dimensions)+len(g.Ranges))
	for _, vals := range g.Dimensions {
		sizes = append(sizes, len(vals))
	}
	for _, r := range g.Ranges {
		n, _ := fanfetch.RangeSize(r.From, r.To)
		sizes = append(sizes, n)
	}
	return sizes
}

// RangeConfig is an inclusive integer range used as a grid dimension.
type RangeConfig struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL, URLTemplate, and Header values.
// Defaults are applied for Port (8080) and Timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity cannot be negative, got %d", c.Capacity)
	}
	if c.Timeout.Duration() < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, c.Timeout.Duration())
	}

	for i := range c.Descriptors {
		d := &c.Descriptors[i]

		if d.Name == "" {
			return fmt.Errorf("descriptors[%d]: name is required", i)
		}
		where := fmt.Sprintf("descriptors[%d] (%s)", i, d.Name)

		if d.URL == "" {
			return fmt.Errorf("%s: url is required", where)
		}
		expanded, err := expandEnvVars(d.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", where, err)
		}
		d.URL = expanded

		parsedURL, err := url.Parse(d.URL)
		if err != nil {
			return fmt.Errorf("%s: invalid url: %w", where, err)
		}
		if parsedURL.Scheme == "" {
			return fmt.Errorf("%s: url must have a scheme (http:// or https://)", where)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("%s: url scheme must be http or https, got %q", where, parsedURL.Scheme)
		}

		if err := validateRequest(where, d.Method, d.Timeout, d.Headers); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		where := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", where)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", where, err)
		}
		g.URLTemplate = expanded

		// fail fast before SDK tries to use invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", where, err)
		}

		if len(g.Dimensions) == 0 && len(g.Ranges) == 0 {
			return fmt.Errorf("%s: at least one dimension or range is required", where)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", where, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if v == "" {
					return fmt.Errorf("%s: dimension %q has an empty value", where, dimName)
				}
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", where, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}
		for rangeName, r := range g.Ranges {
			if _, clash := g.Dimensions[rangeName]; clash {
				return fmt.Errorf("%s: %q is both a dimension and a range", where, rangeName)
			}
			if r.To < r.From {
				return fmt.Errorf("%s: range %q is empty: %d..%d", where, rangeName, r.From, r.To)
			}
			if _, ok := fanfetch.RangeSize(r.From, r.To); !ok {
				return fmt.Errorf("%s: range %q %d..%d exceeds %d values", where, rangeName, r.From, r.To, fanfetch.MaxGridSize)
			}
		}
		if _, ok := fanfetch.GridSize(g.sizes()...); !ok {
			return fmt.Errorf("%s: expands to more than %d descriptors", where, fanfetch.MaxGridSize)
		}

		if err := validateRequest(where, g.Method, g.Timeout, g.Headers); err != nil {
			return err
		}
	}

	if len(c.Descriptors) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one descriptor or grid must be defined")
	}

	return nil
}

// validateRequest checks the settings shared by descriptors and grids and
// expands environment variables in header values.
func validateRequest(where, method string, timeout Duration, headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", where, k, err)
		}
		headers[k] = expanded
	}

	if method != "" && method != "GET" && method != "HEAD" && method != "POST" {
		return fmt.Errorf("%s: method must be GET, HEAD, or POST", where)
	}

	if timeout != 0 {
		if timeout.Duration() < 0 {
			return fmt.Errorf("%s: timeout cannot be negative, got %s", where, timeout.Duration())
		}
		if timeout.Duration() < minTimeout {
			return fmt.Errorf("%s: timeout must be at least %s if specified, got %s",
				where, minTimeout, timeout.Duration())
		}
	}

	return nil
}
