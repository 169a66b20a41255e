// Package config handles configuration loading for interview-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files, or TOML files when the path ends
// in .toml, with environment variable expansion. Unset optional values are
// filled from Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from INTERVIEW_CONFIG environment variable
//  2. ~/.config/interview-gateway/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${INTERVIEW_DB}"
//
// Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	artifacts:
//	  per_document_timeout: "2m"
//	tools:
//	  dedupe_ttl: "10m"
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "./interview.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Artifact batching:
//
//	artifacts:
//	  per_document_timeout: "2m"    # batch timeout is this times the expected count
//	  summary_chars: 600
//	  interview_context_purposes: [writing_sample]
//	  ignored_targets: [basics.image]
//
// Tool calls:
//
//	tools:
//	  dedupe_ttl: "10m"   # how long a call ID is remembered
//	  dedupe_max: 1024
//
// Phases, in order, each with its tool allow-list:
//
//	phases:
//	  - name: phase1_core_facts
//	    allowed_tools: [agent_ready, ask_user_question, get_user_upload]
//	  - name: complete
//	    allowed_tools: [get_artifact]
//
// # Validation
//
// Load() rejects a missing database path, unknown log formats, negative
// durations or sizes, unnamed phases, and duplicate phase names.
package config
