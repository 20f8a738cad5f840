package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Candidate summarizes one model tried by a tool.
type Candidate struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	OFV         *float64 `yaml:"ofv,omitempty"`
	BIC         *float64 `yaml:"bic,omitempty"`
	DF          int      `yaml:"df,omitempty"`
	PValue      *float64 `yaml:"pvalue,omitempty"`
	Selected    bool     `yaml:"selected,omitempty"`
}

// Results is what a tool run produces, written to results.yaml in the
// run directory.
type Results struct {
	Tool       string      `yaml:"tool"`
	BaseModel  string      `yaml:"base_model"`
	BaseOFV    *float64    `yaml:"base_ofv,omitempty"`
	BestModel  string      `yaml:"best_model"`
	Candidates []Candidate `yaml:"candidates"`
}

// WriteResults writes the results file.
func WriteResults(path string, r *Results) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// ReadResults reads a results file written by WriteResults.
func ReadResults(path string) (*Results, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Results
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return &r, nil
}

// Float is a convenience for optional numeric fields.
func Float(v float64) *float64 { return &v }
