// Package main hosts the keroro CLI entrypoint and command graph.
//
// The Cobra-based command tree edits local workflow documents, submits them
// to the workflow backend, follows jobs to completion and manages the model
// catalog, saved templates and provider configuration. Configuration
// resolution, logger setup and session construction live in the command
// context so subcommands only describe user-facing behavior.
//
// Keep this package lean: add functionality to the internal packages first
// and surface it here through dedicated commands or flags.
package main
