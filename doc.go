// Package cura cleans and harmonizes heterogeneous tabular survey data
// against a codebook of permitted keys and values.
//
// A project configuration names a whitelist of keys, the inspections to
// run and an ordered list of edits. A run ingests new domain data files
// into a columnar store, filters the codebook to the whitelist, inspects
// both, applies the edits to the codebook, the domain table or both,
// inspects again and exports the results.
//
// # Architecture
//
// Ingestion is incremental. Every source file is checksummed and recorded
// in a ledger once its rows are appended to the store, so unchanged files
// are skipped on later runs. A file whose content changed after ingestion
// is reported and skipped; picking it up requires a reset of the buffer.
//
// Edits are resolved before any of them runs. Wildcard targets such as
// all_keys expand to one entry per whitelist key, and explicit entries
// override wildcard ones. The router then dispatches each entry to the
// codebook, the domain table or both.
//
// Inspections run twice, before and after the edits. Results accumulate
// per key so that both passes can be compared in one document.
//
// # Layout
//
//	data_in/<domain_foldername>/{domain,codebook}
//	data_buffer/<project>/{original_cb_mirror.json,filtered_cb_mirror.json,buffer_dd/}
//	data_out/<project>/{inspection/,key_exports/,domain_exports/,final_codebook.json}
//
// # Quick Start
//
//	cura list
//	cura config show survey.yaml
//	cura run survey.yaml --target both
//	cura reset survey.yaml --scope data_buffer
//
// # Packages
//
//   - internal/pipeline: phase orchestration, interruption checkpoints
//   - pkg/ingest, pkg/structure, pkg/ledger, pkg/store: incremental ingestion
//   - pkg/router, pkg/transform: edit resolution and the edit registry
//   - pkg/inspection, pkg/processor: inspection passes and entity state
//   - pkg/export, pkg/publish: output formats and object storage uploads
//   - pkg/config, pkg/logger, pkg/errors, pkg/metrics, pkg/observability
package cura
