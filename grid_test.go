package fanfetch

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCartesianProduct_TwoDimensions(t *testing.T) {
	dims := map[string][]string{
		"shard": {"a", "b"},
		"page":  {"1", "2"},
	}

	result := cartesianProduct(dims)

	if len(result) != 4 {
		t.Fatalf("cartesianProduct() returned %d combinations, want 4", len(result))
	}

	// keys iterate sorted (page, shard); the last key varies fastest
	expected := []map[string]string{
		{"page": "1", "shard": "a"},
		{"page": "1", "shard": "b"},
		{"page": "2", "shard": "a"},
		{"page": "2", "shard": "b"},
	}
	for i, want := range expected {
		if result[i]["page"] != want["page"] || result[i]["shard"] != want["shard"] {
			t.Errorf("combination[%d] = %v, want %v", i, result[i], want)
		}
	}
}

func TestCartesianProduct_EmptyInputs(t *testing.T) {
	if got := cartesianProduct(map[string][]string{}); got != nil {
		t.Errorf("cartesianProduct(empty map) = %v, want nil", got)
	}
	if got := cartesianProduct(map[string][]string{"x": {"a"}, "y": {}}); got != nil {
		t.Errorf("cartesianProduct(empty dimension) = %v, want nil", got)
	}
}

func TestCartesianProduct_PreservesValueOrder(t *testing.T) {
	result := cartesianProduct(map[string][]string{"id": {"z", "a", "m"}})

	for i, want := range []string{"z", "a", "m"} {
		if result[i]["id"] != want {
			t.Errorf("combination[%d][id] = %v, want %v", i, result[i]["id"], want)
		}
	}
}

func TestNewDescriptorGrid_Basic(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/{{.shard}}/items?page={{.page}}"),
		WithDimensions(map[string][]string{
			"shard": {"a", "b"},
			"page":  {"1", "2"},
		}),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}
	if len(descriptors) != 4 {
		t.Fatalf("NewDescriptorGrid() returned %d descriptors, want 4", len(descriptors))
	}

	wantNames := []string{"Items (1/a)", "Items (1/b)", "Items (2/a)", "Items (2/b)"}
	wantURLs := []string{
		"https://api.example.com/a/items?page=1",
		"https://api.example.com/b/items?page=1",
		"https://api.example.com/a/items?page=2",
		"https://api.example.com/b/items?page=2",
	}
	for i := range descriptors {
		if descriptors[i].Name() != wantNames[i] {
			t.Errorf("descriptor[%d].Name() = %v, want %v", i, descriptors[i].Name(), wantNames[i])
		}
		if descriptors[i].URL() != wantURLs[i] {
			t.Errorf("descriptor[%d].URL() = %v, want %v", i, descriptors[i].URL(), wantURLs[i])
		}
	}
}

func TestNewDescriptorGrid_URLEncoding(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"space", "hello world", "hello+world"},
		{"ampersand", "a&b", "a%26b"},
		{"equals", "a=b", "a%3Db"},
		{"question", "a?b", "a%3Fb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptors, err := NewDescriptorGrid("Search",
				WithURLTemplate("https://api.example.com/search?q={{.q}}"),
				WithDimensions(map[string][]string{"q": {tt.value}}),
			)
			if err != nil {
				t.Fatalf("NewDescriptorGrid() error = %v", err)
			}

			want := "https://api.example.com/search?q=" + tt.expected
			if descriptors[0].URL() != want {
				t.Errorf("URL() = %v, want %v", descriptors[0].URL(), want)
			}
			// labels keep the raw value
			if descriptors[0].Labels()["q"] != tt.value {
				t.Errorf("Labels()[q] = %v, want %v", descriptors[0].Labels()["q"], tt.value)
			}
		})
	}
}

func TestNewDescriptorGrid_LabelsMerge(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/{{.shard}}/items"),
		WithDimensions(map[string][]string{"shard": {"a"}}),
		WithGridLabels("team", "catalog", "shard", "override"),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}

	labels := descriptors[0].Labels()
	if labels["team"] != "catalog" {
		t.Errorf("Labels()[team] = %v, want catalog", labels["team"])
	}
	// static labels win over dimension labels
	if labels["shard"] != "override" {
		t.Errorf("Labels()[shard] = %v, want override", labels["shard"])
	}
	// the URL still uses the dimension value
	if descriptors[0].URL() != "https://api.example.com/a/items" {
		t.Errorf("URL() = %v", descriptors[0].URL())
	}
}

func TestNewDescriptorGrid_SharedSettings(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/items/{{.id}}"),
		WithDimensions(map[string][]string{"id": {"1", "2"}}),
		WithGridHeaders("Authorization", "Bearer token"),
		WithGridTimeout(30*time.Second),
		WithGridMethod("HEAD"),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}

	for i, d := range descriptors {
		if d.Headers()["Authorization"] != "Bearer token" {
			t.Errorf("descriptor[%d].Headers()[Authorization] = %v", i, d.Headers()["Authorization"])
		}
		if d.Timeout() != 30*time.Second {
			t.Errorf("descriptor[%d].Timeout() = %v, want 30s", i, d.Timeout())
		}
		if d.Method() != "HEAD" {
			t.Errorf("descriptor[%d].Method() = %v, want HEAD", i, d.Method())
		}
	}
}

func TestNewDescriptorGrid_ZeroTimeoutUsesDefault(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/items/{{.id}}"),
		WithDimensions(map[string][]string{"id": {"1"}}),
		WithGridTimeout(0),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}
	if descriptors[0].Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %v, want 10s", descriptors[0].Timeout())
	}
}

func TestWithRangeDimension(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Page",
		WithURLTemplate("https://api.example.com/items?page={{.page}}"),
		WithRangeDimension("page", 1, 12),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}
	if len(descriptors) != 12 {
		t.Fatalf("NewDescriptorGrid() returned %d descriptors, want 12", len(descriptors))
	}
	// numeric order, not lexical
	if descriptors[1].URL() != "https://api.example.com/items?page=2" {
		t.Errorf("descriptor[1].URL() = %v, want page=2", descriptors[1].URL())
	}
	if descriptors[11].Name() != "Page (12)" {
		t.Errorf("descriptor[11].Name() = %v, want Page (12)", descriptors[11].Name())
	}
}

func TestWithRangeDimension_CombinesWithDimensions(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/{{.shard}}/items?page={{.page}}"),
		WithDimensions(map[string][]string{"shard": {"a", "b", "c"}}),
		WithRangeDimension("page", 0, 3),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}
	if len(descriptors) != 12 {
		t.Errorf("NewDescriptorGrid() returned %d descriptors, want 12", len(descriptors))
	}
}

func TestWithRangeDimension_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		first, last int
	}{
		{"empty key", "", 1, 2},
		{"reversed", "page", 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &gridConfig{}
			if err := WithRangeDimension(tt.key, tt.first, tt.last)(cfg); err == nil {
				t.Error("WithRangeDimension() expected error, got nil")
			}
		})
	}
}

func TestWithRangeDimension_TooLarge(t *testing.T) {
	tests := []struct {
		name        string
		first, last int
	}{
		{"spans most of int", -1, math.MaxInt},
		{"spans all of int", math.MinInt, math.MaxInt},
		{"billion pages", 1, 1_000_000_000},
		{"one over the limit", 0, MaxGridSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDescriptorGrid("Items",
				WithURLTemplate("https://api.example.com/items?page={{.page}}"),
				WithRangeDimension("page", tt.first, tt.last),
			)
			if !errors.Is(err, ErrGridTooLarge) {
				t.Errorf("NewDescriptorGrid() error = %v, want ErrGridTooLarge", err)
			}
		})
	}
}

func TestWithRangeDimension_EndsAtMaxInt(t *testing.T) {
	cfg := &gridConfig{}
	if err := WithRangeDimension("id", math.MaxInt-2, math.MaxInt)(cfg); err != nil {
		t.Fatalf("WithRangeDimension() error = %v", err)
	}

	got := cfg.dimensions["id"]
	if len(got) != 3 {
		t.Fatalf("range has %d values, want 3", len(got))
	}
	if want := strconv.Itoa(math.MaxInt); got[2] != want {
		t.Errorf("last value = %s, want %s", got[2], want)
	}
}

func TestNewDescriptorGrid_ProductTooLarge(t *testing.T) {
	_, err := NewDescriptorGrid("Items",
		WithURLTemplate("https://api.example.com/{{.shard}}/items?page={{.page}}"),
		WithRangeDimension("shard", 1, 1000),
		WithRangeDimension("page", 1, 1000),
	)
	if !errors.Is(err, ErrGridTooLarge) {
		t.Errorf("NewDescriptorGrid() error = %v, want ErrGridTooLarge", err)
	}
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		name   string
		sizes  []int
		want   int
		wantOK bool
	}{
		{"single", []int{7}, 7, true},
		{"product", []int{2, 3, 4}, 24, true},
		{"at limit", []int{100, MaxGridSize / 100}, MaxGridSize, true},
		{"over limit", []int{2, MaxGridSize/2 + 1}, 0, false},
		{"would overflow int", []int{math.MaxInt, math.MaxInt}, 0, false},
		{"empty dimension", []int{5, 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GridSize(tt.sizes...)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GridSize(%v) = (%d, %v), want (%d, %v)", tt.sizes, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWithDimensions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		dims map[string][]string
	}{
		{"empty map", map[string][]string{}},
		{"no values", map[string][]string{"shard": {}}},
		{"empty value", map[string][]string{"shard": {"a", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &gridConfig{}
			if err := WithDimensions(tt.dims)(cfg); err == nil {
				t.Error("WithDimensions() expected error, got nil")
			}
		})
	}
}

func TestWithDimensions_CopiesValues(t *testing.T) {
	vals := []string{"a", "b"}
	cfg := &gridConfig{}
	if err := WithDimensions(map[string][]string{"shard": vals})(cfg); err != nil {
		t.Fatalf("WithDimensions() error = %v", err)
	}
	vals[0] = "mutated"

	if cfg.dimensions["shard"][0] != "a" {
		t.Errorf("dimension shared caller slice: %v", cfg.dimensions["shard"])
	}
}

func TestGridOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  GridOption
	}{
		{"empty template", WithURLTemplate("")},
		{"odd labels", WithGridLabels("team")},
		{"odd headers", WithGridHeaders("Authorization")},
		{"negative timeout", WithGridTimeout(-time.Second)},
		{"bad method", WithGridMethod("DELETE")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &gridConfig{staticLabels: map[string]string{}, headers: map[string]string{}}
			if err := tt.opt(cfg); err == nil {
				t.Error("option expected error, got nil")
			}
		})
	}
}

func TestNewDescriptorGrid_Errors(t *testing.T) {
	tests := []struct {
		name     string
		baseName string
		opts     []GridOption
		contains string
	}{
		{
			name:     "empty base name",
			baseName: "  ",
			opts: []GridOption{
				WithURLTemplate("https://api.example.com/{{.id}}"),
				WithDimensions(map[string][]string{"id": {"1"}}),
			},
			contains: "base name",
		},
		{
			name:     "missing template",
			baseName: "Items",
			opts:     []GridOption{WithDimensions(map[string][]string{"id": {"1"}})},
			contains: "URL template required",
		},
		{
			name:     "missing dimensions",
			baseName: "Items",
			opts:     []GridOption{WithURLTemplate("https://api.example.com/{{.id}}")},
			contains: "dimension",
		},
		{
			name:     "invalid template syntax",
			baseName: "Items",
			opts: []GridOption{
				WithURLTemplate("https://api.example.com/{{.id"),
				WithDimensions(map[string][]string{"id": {"1"}}),
			},
			contains: "template",
		},
		{
			name:     "missing template key",
			baseName: "Items",
			opts: []GridOption{
				WithURLTemplate("https://api.example.com/{{.missing}}"),
				WithDimensions(map[string][]string{"id": {"1"}}),
			},
			contains: "template execution failed",
		},
		{
			name:     "rendered URL has no scheme",
			baseName: "Items",
			opts: []GridOption{
				WithURLTemplate("api.example.com/{{.id}}"),
				WithDimensions(map[string][]string{"id": {"1"}}),
			},
			contains: "Items (1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDescriptorGrid(tt.baseName, tt.opts...)
			if err == nil {
				t.Fatal("NewDescriptorGrid() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error = %v, want it to contain %q", err, tt.contains)
			}
		})
	}
}

func TestNewDescriptorGrid_TemplateWithConditional(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Items",
		WithURLTemplate(`{{if eq .env "prod"}}https{{else}}http{{end}}://api.example.com/items`),
		WithDimensions(map[string][]string{"env": {"prod", "staging"}}),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}

	if !strings.HasPrefix(descriptors[0].URL(), "https://") {
		t.Errorf("prod URL should start with https://, got: %s", descriptors[0].URL())
	}
	if !strings.HasPrefix(descriptors[1].URL(), "http://") {
		t.Errorf("staging URL should start with http://, got: %s", descriptors[1].URL())
	}
}

func TestNewDescriptorGrid_DispatchesInGridOrder(t *testing.T) {
	descriptors, err := NewDescriptorGrid("Page",
		WithURLTemplate("stub://items?page={{.page}}"),
		WithRangeDimension("page", 1, 50),
	)
	if err != nil {
		t.Fatalf("NewDescriptorGrid() error = %v", err)
	}

	stub := FetcherFunc(func(_ context.Context, d Descriptor) ([]byte, error) {
		return []byte(d.Labels()["page"]), nil
	})
	report, err := Dispatch(context.Background(), stub, descriptors, WithCapacity(7), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if report.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", report.Len())
	}
	for i, o := range report.Outcomes() {
		s, ok := o.Success()
		if !ok {
			t.Fatalf("outcome %d failed: %+v", i, o)
		}
		if string(s.Payload) != descriptors[i].Labels()["page"] {
			t.Errorf("outcome %d payload = %s, want %s", i, s.Payload, descriptors[i].Labels()["page"])
		}
	}
}
