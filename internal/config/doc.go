// Package config loads and validates the rentabotd YAML configuration,
// expanding ${ENV_VAR} references and parsing duration strings.
package config
