package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the shape of the optional YAML config file. Flags passed on
// the command line override whatever a file sets.
type fileConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	AuthRealm string   `yaml:"auth_realm"`
	Verbose   bool     `yaml:"verbose"`
	LogFile   string   `yaml:"log_file"`
	Upstream  string   `yaml:"upstream"`
	BasicAuth []string `yaml:"basic_auth"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}
