// Package services defines shared utilities consumed by the workflow, job and
// registry clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, step IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (validation vs transport vs application) and render them with a
//     category label.
//
// Use these helpers when wiring new client logic so error handling and
// observability stay uniform across the module.
package services
