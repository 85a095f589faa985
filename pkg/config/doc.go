// Package config loads cura project configurations and runtime settings.
//
// # Project Configuration
//
// A project configuration is a JSON or YAML document naming the project,
// its input folder, the whitelist of keys, and the ordered inspections,
// edits and exports to run. Sections whose order matters (inspections,
// edits, output formats) keep document order.
//
//	project_name: survey_2024
//	domain_foldername: survey
//	white_list: [Q1, Q2]
//	append_new_metadata: true
//	select_parser: spss_basic
//	cb_inspections:
//	  length_map: {active: true}
//	  char_map-values: {active: true}
//	dd_inspections:
//	  occurrence_map: {active: true}
//	edits:
//	  - apply_trim:
//	      all_keys: []
//	  - apply_padding:
//	      Q1: [3, "0"]
//	csv_export_delimiter: ";"
//	output_formats_and_batching:
//	  csv: monolith
//	  parquet: 100000
//	parsing_options:
//	  add_id: true
//
// ${VAR_NAME} references are replaced with environment variable values
// before parsing.
//
// # Sub-configurations
//
// With sub_configs set, configs lists named variants. The selected variant
// overrides project_name and domain_foldername and appends its
// white_list_append keys; the whitelist is then sorted naturally.
//
// # Runtime Settings
//
// Settings that vary per machine rather than per project (data root, log
// level, telemetry switches) come from viper, bound to command line flags
// and CURA_* environment variables.
package config
