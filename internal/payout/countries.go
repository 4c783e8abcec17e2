package payout

import (
	_ "embed"
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var countriesYAML []byte

// FieldSpec describes one input of a country's bank account form.
type FieldSpec struct {
	Name    string `yaml:"name" json:"name"`
	Label   string `yaml:"label" json:"label"`
	Kind    string `yaml:"kind" json:"kind"`
	Pattern string `yaml:"pattern" json:"-"`

	pattern *regexp.Regexp
}

// Layout is the set of bank account fields a country requires, plus the payout
// currency for that country.
type Layout struct {
	Country  string      `json:"country"`
	Currency string      `yaml:"currency" json:"currency"`
	Fields   []FieldSpec `yaml:"fields" json:"fields"`
}

type countryTable struct {
	Default   Layout            `yaml:"default"`
	Countries map[string]Layout `yaml:"countries"`
}

// Layouts resolves country codes to bank account field layouts. Unknown countries fall
// back to a generic SWIFT layout so sellers anywhere can still enter an account.
type Layouts struct {
	fallback Layout
	byCode   map[string]Layout
}

// LoadLayouts parses the embedded country table and compiles its field patterns.
func LoadLayouts() (*Layouts, error) {
	var table countryTable
	if err := yaml.Unmarshal(countriesYAML, &table); err != nil {
		return nil, eris.Wrap(err, "parsing country table")
	}

	compile := func(code string, layout Layout) (Layout, error) {
		layout.Country = code
		for i := range layout.Fields {
			pattern, err := regexp.Compile(layout.Fields[i].Pattern)
			if err != nil {
				return Layout{}, eris.Wrapf(err, "compiling pattern for %s/%s", code, layout.Fields[i].Name)
			}
			layout.Fields[i].pattern = pattern
		}
		return layout, nil
	}

	fallback, err := compile("", table.Default)
	if err != nil {
		return nil, err
	}
	if len(fallback.Fields) == 0 {
		return nil, eris.New("country table has no default layout")
	}

	byCode := make(map[string]Layout, len(table.Countries))
	for code, layout := range table.Countries {
		compiled, err := compile(code, layout)
		if err != nil {
			return nil, err
		}
		byCode[code] = compiled
	}

	return &Layouts{fallback: fallback, byCode: byCode}, nil
}

// For returns the layout for a country code. The second return reports whether the
// country has a dedicated layout or received the fallback.
func (l *Layouts) For(country string) (Layout, bool) {
	if layout, ok := l.byCode[country]; ok {
		return layout, true
	}
	fallback := l.fallback
	fallback.Country = country
	return fallback, false
}

// Countries lists the codes with dedicated layouts, sorted.
func (l *Layouts) Countries() []string {
	codes := make([]string, 0, len(l.byCode))
	for code := range l.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Validate checks submitted field values against the layout: every field must be
// present and match its pattern, and no unknown fields are accepted.
func (l Layout) Validate(values map[string]string) error {
	known := make(map[string]bool, len(l.Fields))
	for _, field := range l.Fields {
		known[field.Name] = true
		value, ok := values[field.Name]
		if !ok || value == "" {
			return eris.Errorf("field is required: %s", field.Name)
		}
		if !field.pattern.MatchString(value) {
			return eris.Errorf("field is invalid: %s", field.Name)
		}
	}
	for name := range values {
		if !known[name] {
			return eris.Errorf("unexpected field: %s", name)
		}
	}
	return nil
}
