package catalog

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/ism7-bridge/internal/ism7/converter"
)

// Control types of a parameter template.
const (
	ControlNumber = "number"
	ControlList   = "list"
	ControlSwitch = "switch"
	ControlText   = "text"
)

// Option is one entry of a list parameter's label table.
type Option struct {
	Value int    `yaml:"value"`
	Label string `yaml:"label"`
}

// DeviceTemplate lists the parameters a device type exposes.
type DeviceTemplate struct {
	ID         int    `yaml:"id"`
	Name       string `yaml:"name"`
	Parameters []int  `yaml:"parameters"`
}

// ParameterTemplate is the user-facing description of one parameter.
type ParameterTemplate struct {
	PTID        int      `yaml:"ptid"`
	Name        string   `yaml:"name"`
	Writable    bool     `yaml:"writable"`
	ControlType string   `yaml:"control_type"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Step        *float64 `yaml:"step,omitempty"`
	Unit        string   `yaml:"unit,omitempty"`
	Options     []Option `yaml:"options,omitempty"`
}

// HasLabels reports whether the parameter is a list with a label table.
func (p ParameterTemplate) HasLabels() bool {
	return p.ControlType == ControlList && len(p.Options) > 0
}

// Label returns the label for a raw list value.
func (p ParameterTemplate) Label(value int) (string, bool) {
	for _, o := range p.Options {
		if o.Value == value {
			return o.Label, true
		}
	}
	return "", false
}

// ValueOf returns the raw list value for a label. Matching is case-insensitive.
func (p ParameterTemplate) ValueOf(label string) (int, bool) {
	for _, o := range p.Options {
		if strings.EqualFold(o.Label, label) {
			return o.Value, true
		}
	}
	return 0, false
}

// document is the on-disk YAML layout.
type document struct {
	Devices      []DeviceTemplate     `yaml:"devices"`
	Parameters   []ParameterTemplate  `yaml:"parameters"`
	Converters   []converter.Template `yaml:"converters"`
	Translations map[string]string    `yaml:"translations"`
}

// Catalog holds the immutable device, parameter and converter templates.
// It is built once at startup and safe for concurrent reads.
type Catalog struct {
	devices      map[int]DeviceTemplate
	deviceNames  map[string]int
	parameters   map[int]ParameterTemplate
	converters   map[int]converter.Template
	translations map[string]string
}

// Load reads and validates a catalog YAML file.
//
// Parameters:
//   - path: Path to the catalog file
//
// Returns:
//   - *Catalog: Immutable catalog
//   - error: If the file cannot be read, parsed, or fails validation
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML data.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		devices:      make(map[int]DeviceTemplate, len(doc.Devices)),
		deviceNames:  make(map[string]int, len(doc.Devices)),
		parameters:   make(map[int]ParameterTemplate, len(doc.Parameters)),
		converters:   make(map[int]converter.Template, len(doc.Converters)),
		translations: make(map[string]string, len(doc.Translations)),
	}

	var errs []string

	for _, p := range doc.Parameters {
		if _, dup := c.parameters[p.PTID]; dup {
			errs = append(errs, fmt.Sprintf("parameter %d defined twice", p.PTID))
			continue
		}
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("parameter %d has no name", p.PTID))
		}
		c.parameters[p.PTID] = p
	}

	for _, t := range doc.Converters {
		if _, dup := c.converters[t.CTID]; dup {
			errs = append(errs, fmt.Sprintf("converter %d defined twice", t.CTID))
			continue
		}
		if _, err := converter.New(t, nil); err != nil {
			errs = append(errs, fmt.Sprintf("converter %d: %v", t.CTID, err))
			continue
		}
		c.converters[t.CTID] = t
	}

	for _, d := range doc.Devices {
		if _, dup := c.devices[d.ID]; dup {
			errs = append(errs, fmt.Sprintf("device %d defined twice", d.ID))
			continue
		}
		for _, ptid := range d.Parameters {
			if _, ok := c.parameters[ptid]; !ok {
				errs = append(errs, fmt.Sprintf("device %d (%s) references unknown parameter %d", d.ID, d.Name, ptid))
			}
		}
		c.devices[d.ID] = d
		if d.Name != "" {
			c.deviceNames[strings.ToLower(d.Name)] = d.ID
		}
	}

	for k, v := range doc.Translations {
		c.translations[k] = v
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}

	return c, nil
}

// Device returns the device template with the given id.
func (c *Catalog) Device(id int) (DeviceTemplate, bool) {
	d, ok := c.devices[id]
	return d, ok
}

// DeviceByName returns the device template with the given name (case-insensitive).
func (c *Catalog) DeviceByName(name string) (DeviceTemplate, bool) {
	id, ok := c.deviceNames[strings.ToLower(name)]
	if !ok {
		return DeviceTemplate{}, false
	}
	return c.devices[id], true
}

// Devices returns all device templates ordered by id.
func (c *Catalog) Devices() []DeviceTemplate {
	out := make([]DeviceTemplate, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b DeviceTemplate) int { return a.ID - b.ID })
	return out
}

// Parameter returns the parameter template with the given PTID.
func (c *Catalog) Parameter(ptid int) (ParameterTemplate, bool) {
	p, ok := c.parameters[ptid]
	return p, ok
}

// Converter returns the converter template keyed to ptid. Parameters
// without a converter get the null family.
func (c *Catalog) Converter(ptid int) converter.Template {
	if t, ok := c.converters[ptid]; ok {
		return t
	}
	return converter.Template{CTID: ptid, Family: converter.FamilyNull}
}

// Translate returns the translation of s, or s itself.
func (c *Catalog) Translate(s string) string {
	if t, ok := c.translations[s]; ok {
		return t
	}
	return s
}
