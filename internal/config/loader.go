package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

const escapedDollar = "\x00ESCAPED_DOLLAR\x00"

// LoadServiceConfig reads, substitutes, defaults and validates the service
// configuration at path.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseServiceConfig(data)
}

// LoadServiceConfigFromReader is LoadServiceConfig for an io.Reader.
func LoadServiceConfigFromReader(r io.Reader) (*ServiceConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseServiceConfig(data)
}

// ParseServiceConfig parses YAML service configuration.
func ParseServiceConfig(data []byte) (*ServiceConfig, error) {
	content := substituteEnvVars(string(data))

	cfg := &ServiceConfig{}
	if strings.TrimSpace(content) != "" {
		dec := yaml.NewDecoder(strings.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, util.NewConfigErrorWithCause("", fmt.Sprintf("failed to parse YAML: %v", err), err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMappingConfig reads a mapping configuration file. JSON and YAML are
// both accepted; YAML is converted to JSON first so both forms share one
// decoder.
func LoadMappingConfig(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping config %s: %w", path, err)
	}
	return ParseMappingConfig(data)
}

// ParseMappingConfig decodes a mapping configuration without validating it.
func ParseMappingConfig(data []byte) (*MappingConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, util.NewConfigError("mappingConfig", "is empty")
	}

	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, util.NewConfigErrorWithCause("mappingConfig", fmt.Sprintf("invalid YAML: %v", err), err)
		}
		trimmed = converted
	}

	var cfg MappingConfig
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return nil, util.NewConfigErrorWithCause("mappingConfig", fmt.Sprintf("invalid JSON: %v", err), err)
	}
	return &cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("top level must be a mapping")
	}
	return json.Marshal(v)
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values. $$ escapes a literal dollar sign.
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", escapedDollar)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, escapedDollar, "$")
}
