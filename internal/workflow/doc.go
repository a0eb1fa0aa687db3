// Package workflow models Keroro workflow documents: ordered steps of a
// closed set of kinds, each carrying typed parameters, plus the operations
// the editor needs on them.
//
// # Documents
//
// A Document is created empty, grown with AddStep, reordered with MoveStep and
// trimmed with RemoveStep. Normalize rewrites legacy step kinds without
// touching the receiver. SubmissionPayload produces the wire form accepted by
// the job API and Preview renders the same payload for display, so the two
// views never disagree on which fields a step carries.
//
// # Parameters
//
// Params is a tagged union keyed by Kind. Every variant preserves JSON keys it
// does not model (Extra), and so does Step for step-level keys, so documents
// written by newer editors survive a load and save cycle. Step conditions
// also accept the labelled keys the browser editor stores. Default parameter
// sets come from per-kind constructors and
// are deep copied into each new step.
//
// # Compatibility
//
// Each kind declares typed input and output fields. IsCompatible and
// CheckConnection answer whether an output may feed an input; they report and
// never enforce. runninghub_app inputs are discovered at runtime through an
// InputResolver.
//
// # Schemas
//
// ParamSchema reflects a JSON Schema from each parameter struct and Lint
// checks a document against those schemas. Findings are advisory; the backend
// remains the authority on parameter completeness.
package workflow
