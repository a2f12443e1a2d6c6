// Package validation checks experiment configuration and request inputs.
//
// Struct tag validation (go-playground/validator) reports field names using
// their mapstructure keys so messages read like the YAML the user wrote.
// The fluent Validator collects ad-hoc checks.
//
// # Struct Tag Validation
//
//	type ModelConfig struct {
//	    ProjectDim int    `mapstructure:"project_dim" validate:"gt=0"`
//	    Select     string `mapstructure:"select" validate:"required"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New().Required("split", split).Min("batch_size", n, 1)
//	if err := v.Validate(); err != nil { ... }
package validation
