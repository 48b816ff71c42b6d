package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadDeployment reads the operational deployment config (server bind
// address, ledger backend, provider endpoints) from a YAML file. This is
// the teacher's ambient config-loading idiom; it has nothing to do with the
// frozen, JSON-loaded Policy (policy.go), which is the only configuration
// surface the spec itself defines.
func LoadDeployment(path string) (*DeploymentConfig, error) {
	expanded, err := readExpanded(path)
	if err != nil {
		return nil, fmt.Errorf("load deployment config: %w", err)
	}
	cfg := DefaultDeploymentConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse deployment config %s: %w", path, err)
	}
	return cfg, nil
}
