// Package loader parses workflow definitions authored as YAML files
// into the stored definition form.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lyzr/flowd/models"
)

// DefaultPort is assumed when a connection omits the target port
const DefaultPort = "main"

// Parse decodes a YAML definition and normalises it. Structural
// validation (cycles, dangling references) is the engine's job; the
// loader only guarantees a well-formed document.
func Parse(data []byte) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid workflow yaml: %w", err)
	}
	Normalize(&def)
	return &def, nil
}

// ParseFile reads and parses a YAML definition from disk
func ParseFile(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Normalize fills in the defaults a YAML author may omit: node names
// fall back to ids and connection ports fall back to main
func Normalize(def *models.WorkflowDefinition) {
	for i := range def.Nodes {
		if def.Nodes[i].Name == "" {
			def.Nodes[i].Name = def.Nodes[i].ID
		}
		if def.Nodes[i].Parameters == nil {
			def.Nodes[i].Parameters = map[string]interface{}{}
		}
	}
	for source, ports := range def.Connections {
		normalized := make(models.PortConnections, len(ports))
		for port, targets := range ports {
			if port == "" {
				port = DefaultPort
			}
			for i := range targets {
				if targets[i].Port == "" {
					targets[i].Port = DefaultPort
				}
			}
			normalized[port] = append(normalized[port], targets...)
		}
		def.Connections[source] = normalized
	}
}
