// Package config resolves runtime settings from CLI flags, environment
// variables (optionally seeded from a dotenv file) and a YAML file, with
// precedence: CLI flags > Environment variables > YAML config > Defaults.
package config
