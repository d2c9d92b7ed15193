// Package config loads the branch configuration of the migrator.
//
// Sources & precedence (later wins)
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory, if present, then MIGRATOR_*
//     environment variables.
//  3. Optional JSON or YAML file selected with -c or -config; the format is
//     picked by extension (.yaml/.yml, anything else is JSON).
//  4. Command-line flags.
//
// # File schema
//
// Durations accept Go duration strings or integer nanoseconds:
//
//	{
//	  "root_folder": "Archivos de carga Estacionamientos - ENTRA",
//	  "branch_folder": "61. 006-PLAZA REFORMA",
//	  "endpoint": "https://endpoints.example.com/upload",
//	  "branch_header": "6 PLAZA REFORMA",
//	  "lookback": 3,
//	  "completion_style": "relocate",
//	  "upload_timeout": "20m"
//	}
//
// The resulting Config is validated once and not mutated afterwards.
package config
