// Package validation holds the precondition checks shared by the workflow,
// job and registry clients.
//
// Every check returns nil or a *ValidationError whose message is the
// user-facing text shown for the failure. The package has no knowledge of the
// workflow types; documents are inspected through the small Workflow
// interface so it stays a leaf dependency.
package validation
