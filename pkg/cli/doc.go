// Package cli implements the schemacompat command line tool.
//
// Commands:
//
//	schemacompat check    --schema user.json --subject users-value --version 1.1.0
//	schemacompat register --schema user.json --subject users-value --version 1.1.0
//	schemacompat explain  --old v1.json --new v2.json --mode FULL
//	schemacompat subjects
//	schemacompat deps graph --output dot
//	schemacompat deps impact users-value@1.0.0
//	schemacompat deps cycles
//	schemacompat deps order
//	schemacompat health
//
// Settings come from --config (YAML) and SCHEMACOMPAT_* environment variables; see
// package config.
package cli
