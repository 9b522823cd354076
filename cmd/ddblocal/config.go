package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "ddblocal.yaml"

// Config holds the server configuration. Loaded from ddblocal.yaml if one is
// found walking up from the working directory; flags override file values.
type Config struct {
	// Port is the HTTP port to listen on.
	Port int `yaml:"port"`

	// Engine selects the storage engine: "btree" or "badger".
	Engine string `yaml:"engine"`

	// Schema is a glob of table schema yaml files to pre-create at startup.
	Schema string `yaml:"schema"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	LogFile   string `yaml:"logFile"`
}

func defaultConfig() Config {
	return Config{
		Port:      8000,
		Engine:    "btree",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// loadConfig searches for ddblocal.yaml starting from the current directory
// and walking up to the filesystem root. Returns defaults if not found.
func loadConfig() Config {
	cfg := defaultConfig()

	path := findConfigFile()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(data, &cfg)
	return cfg
}

func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
