// Package config loads experiment configuration for ctckit.
//
// It uses Viper to read a YAML (or JSON/TOML) file, overlays variables from
// an optional .env file (godotenv) and the process environment, and
// unmarshals the result into a caller-provided struct.
//
// # Usage
//
//	var cfg runner.Config
//	err := config.LoadConfig("ctckit", &cfg, config.WithConfigFile("configs/librispeech.yml"))
//
// Environment variables override file values when they carry the
// configured prefix (default CTCKIT_), with underscores mapping to nesting:
// CTCKIT_RUNNER_TOTAL_STEPS -> runner.total_steps.
package config
