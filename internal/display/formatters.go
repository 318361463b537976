package display

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"backup-compare/internal/compare"
)

// OutputFormatter renders a findings report in one output format.
type OutputFormatter interface {
	FormatReport(findings *compare.ComparatorFindings) (string, error)
}

// NewOutputFormatter selects a formatter by name: pretty, json, or yaml.
func NewOutputFormatter(format string, renderer *ReportRenderer) (OutputFormatter, error) {
	switch format {
	case "", "pretty":
		return &PrettyFormatter{renderer: renderer}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "yaml":
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("invalid output format %q, must be one of: pretty, json, yaml", format)
	}
}

// PrettyFormatter renders the colorized text report.
type PrettyFormatter struct {
	renderer *ReportRenderer
}

// FormatReport implements OutputFormatter.
func (f *PrettyFormatter) FormatReport(findings *compare.ComparatorFindings) (string, error) {
	return f.renderer.RenderReport(findings), nil
}

// JSONFormatter renders the machine-readable JSON report, with finding kinds
// encoded as their symbolic names.
type JSONFormatter struct{}

// FormatReport implements OutputFormatter.
func (f *JSONFormatter) FormatReport(findings *compare.ComparatorFindings) (string, error) {
	data, err := findings.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal findings to JSON: %w", err)
	}
	return string(data), nil
}

// YAMLFormatter renders the report as YAML. It round-trips through the JSON
// encoding so the kind-as-name and identity-flattening contracts hold in YAML
// output too.
type YAMLFormatter struct{}

// FormatReport implements OutputFormatter.
func (f *YAMLFormatter) FormatReport(findings *compare.ComparatorFindings) (string, error) {
	data, err := findings.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal findings: %w", err)
	}

	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return "", fmt.Errorf("failed to rebuild findings for YAML output: %w", err)
	}

	yamlData, err := yaml.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("failed to marshal findings to YAML: %w", err)
	}
	return string(yamlData), nil
}
