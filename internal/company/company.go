// Package company holds the read-only company configuration a session
// validates against: roster, jobsites, material categories and labor
// activities.
package company

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Employee is a roster member. In the config file an employee may be given
// as a bare name or as a mapping.
type Employee struct {
	Name             string `yaml:"name" json:"name"`
	Role             string `yaml:"role,omitempty" json:"role,omitempty"`
	ApprenticePeriod string `yaml:"apprentice_period,omitempty" json:"apprentice_period,omitempty"`
}

// UnmarshalYAML accepts either "Alex Doe" or {name: Alex Doe, role: ...}.
func (e *Employee) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	type plain Employee
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Employee(p)
	return nil
}

type Jobsite struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

type MaterialCategory struct {
	Key         string `yaml:"key" json:"key"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type LaborActivity struct {
	Key             string           `yaml:"key" json:"key"`
	Label           string           `yaml:"label" json:"label"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultQuantity *decimal.Decimal `yaml:"default_quantity,omitempty" json:"default_quantity,omitempty"`
	DefaultUnit     string           `yaml:"default_unit,omitempty" json:"default_unit,omitempty"`
}

// Config is immutable once loaded; callers must not modify the slices.
type Config struct {
	Name            string             `yaml:"-" json:"name"`
	Employees       []Employee         `yaml:"employees" json:"employees"`
	Jobsites        []Jobsite          `yaml:"jobsites" json:"jobsites"`
	Materials       []MaterialCategory `yaml:"materials" json:"materials"`
	LaborActivities []LaborActivity    `yaml:"labor_activities" json:"labor_activities"`
}

type fileFormat struct {
	Company struct {
		Name string `yaml:"name"`
	} `yaml:"company"`
	Config `yaml:",inline"`
}

// ConfigError reports a malformed or internally inconsistent company config.
// It is fatal to session start.
type ConfigError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("company config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads a YAML or JSON company config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg, err := Parse(raw)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Path = path
			return nil, ce
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and checks a config document. JSON documents are accepted
// because JSON is a subset of YAML.
func Parse(raw []byte) (*Config, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg := f.Config
	cfg.Name = strings.TrimSpace(f.Company.Name)
	cfg.normalize()
	if problems := cfg.check(); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	for i := range c.Employees {
		c.Employees[i].Name = strings.TrimSpace(c.Employees[i].Name)
	}
	for i := range c.Jobsites {
		c.Jobsites[i].Code = strings.TrimSpace(c.Jobsites[i].Code)
		c.Jobsites[i].Name = strings.TrimSpace(c.Jobsites[i].Name)
	}
	for i := range c.Materials {
		c.Materials[i].Key = strings.TrimSpace(c.Materials[i].Key)
		c.Materials[i].Label = strings.TrimSpace(c.Materials[i].Label)
	}
	for i := range c.LaborActivities {
		c.LaborActivities[i].Key = strings.TrimSpace(c.LaborActivities[i].Key)
		c.LaborActivities[i].Label = strings.TrimSpace(c.LaborActivities[i].Label)
	}
}

func (c *Config) check() []string {
	var problems []string
	dup := func(kind string) func(string) {
		seen := map[string]struct{}{}
		return func(v string) {
			k := fold(v)
			if k == "" {
				return
			}
			if _, ok := seen[k]; ok {
				problems = append(problems, fmt.Sprintf("duplicate %s %q", kind, v))
				return
			}
			seen[k] = struct{}{}
		}
	}

	employee := dup("employee")
	for i, e := range c.Employees {
		if e.Name == "" {
			problems = append(problems, fmt.Sprintf("employees[%d]: name is required", i))
		}
		employee(e.Name)
	}
	code, name := dup("jobsite code"), dup("jobsite name")
	for i, j := range c.Jobsites {
		if j.Code == "" && j.Name == "" {
			problems = append(problems, fmt.Sprintf("jobsites[%d]: code or name is required", i))
		}
		code(j.Code)
		name(j.Name)
	}
	material := dup("material key")
	for i, m := range c.Materials {
		if m.Key == "" {
			problems = append(problems, fmt.Sprintf("materials[%d]: key is required", i))
		}
		material(m.Key)
	}
	activity := dup("labor activity key")
	for i, a := range c.LaborActivities {
		if a.Key == "" {
			problems = append(problems, fmt.Sprintf("labor_activities[%d]: key is required", i))
		}
		if a.DefaultQuantity != nil && a.DefaultQuantity.IsNegative() {
			problems = append(problems, fmt.Sprintf("labor_activities[%d]: default_quantity must not be negative", i))
		}
		activity(a.Key)
	}
	return problems
}

// HasJobsites reports whether jobsite references are enforced.
func (c *Config) HasJobsites() bool { return c != nil && len(c.Jobsites) > 0 }

// FindEmployee matches a roster name case-insensitively.
func (c *Config) FindEmployee(name string) (Employee, bool) {
	if c == nil {
		return Employee{}, false
	}
	k := fold(name)
	for _, e := range c.Employees {
		if fold(e.Name) == k {
			return e, true
		}
	}
	return Employee{}, false
}

// FindJobsite matches a jobsite code or name and returns the configured
// spelling of whichever matched.
func (c *Config) FindJobsite(value string) (Jobsite, string, bool) {
	if c == nil {
		return Jobsite{}, "", false
	}
	k := fold(value)
	if k == "" {
		return Jobsite{}, "", false
	}
	for _, j := range c.Jobsites {
		if fold(j.Code) == k {
			return j, j.Code, true
		}
		if fold(j.Name) == k {
			return j, j.Name, true
		}
	}
	return Jobsite{}, "", false
}

// FindMaterial matches a material key or label.
func (c *Config) FindMaterial(value string) (MaterialCategory, string, bool) {
	if c == nil {
		return MaterialCategory{}, "", false
	}
	k := fold(value)
	if k == "" {
		return MaterialCategory{}, "", false
	}
	for _, m := range c.Materials {
		if fold(m.Key) == k {
			return m, m.Key, true
		}
		if fold(m.Label) == k {
			return m, m.Label, true
		}
	}
	return MaterialCategory{}, "", false
}

// FindActivity matches a labor activity key or label.
func (c *Config) FindActivity(value string) (LaborActivity, string, bool) {
	if c == nil {
		return LaborActivity{}, "", false
	}
	k := fold(value)
	if k == "" {
		return LaborActivity{}, "", false
	}
	for _, a := range c.LaborActivities {
		if fold(a.Key) == k {
			return a, a.Key, true
		}
		if fold(a.Label) == k {
			return a, a.Label, true
		}
	}
	return LaborActivity{}, "", false
}

// EmployeeNames lists roster names in config order.
func (c *Config) EmployeeNames() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Employees))
	for _, e := range c.Employees {
		out = append(out, e.Name)
	}
	return out
}

// JobsiteChoices lists "CODE (Name)" strings for follow-up questions.
func (c *Config) JobsiteChoices() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Jobsites))
	for _, j := range c.Jobsites {
		switch {
		case j.Code != "" && j.Name != "":
			out = append(out, fmt.Sprintf("%s (%s)", j.Code, j.Name))
		case j.Code != "":
			out = append(out, j.Code)
		default:
			out = append(out, j.Name)
		}
	}
	return out
}

func (c *Config) MaterialChoices() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Materials))
	for _, m := range c.Materials {
		out = append(out, m.Key)
	}
	return out
}

func (c *Config) ActivityChoices() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.LaborActivities))
	for _, a := range c.LaborActivities {
		out = append(out, a.Key)
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
