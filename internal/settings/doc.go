// Package settings provides the key-value settings store the coordinator and
// renderer read from: the command list, the label separator and the label
// length limit, plus a per-key change signal.
//
// Drivers:
//   - memory: in-process (tests, throwaway runs)
//   - file:   JSON/YAML document, external edits picked up through fsnotify
//   - sqlite: single-table database, external edits picked up by polling data_version
package settings
