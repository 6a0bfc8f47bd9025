// Package config handles configuration loading for gapchat.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion and validated before use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from GAPCHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/gapchat/gapchat.yaml
//  3. ~/.config/gapchat/gapchat.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	ai:
//	  api_key: "${GEMINI_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Storage:
//
//	storage:
//	  path: "/var/lib/gapchat/gapchat.db"
//
// AI gateway:
//
//	ai:
//	  api_key: "${GEMINI_API_KEY}"  # optional; chat degrades without it
//	  model: "gemini-2.5-flash"
//	  base_url: ""                  # override for testing
//
// Session cookie signing:
//
//	auth:
//	  session_secret: "${GAPCHAT_SESSION_SECRET}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() requires server.http_addr, storage.path and auth.session_secret.
// A missing ai.api_key is allowed: the chat gateway then answers with its
// fixed fallback string instead of failing startup.
package config
