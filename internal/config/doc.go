// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for chatly.
//
// TOML is the primary format; YAML is accepted for users who already keep
// their dotfiles in YAML. A .env file in the working directory is loaded
// before environment overrides are applied.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - BackendConfig: Remote chat API location and limits
//   - ChatConfig: Upload policy and typewriter pacing
//   - NavConfig: Loading screen dwell
//   - AuthConfig: Auth provider selection and provider settings
//   - LoggingConfig, UIConfig: Ambient settings
//
// # Configuration Precedence
//
//   - Environment variables (CHATLY_*, including values from .env)
//   - ~/.chatly/config.toml
//   - ~/.chatly/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := backend.NewClient(cfg.Backend.URL)
package config
