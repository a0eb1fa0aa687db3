// Package session owns the long-lived clients a keroro process needs.
//
// A Session is built once from configuration and holds the backend
// transport, the job and registry clients and the job poller. Nothing in the
// library keeps process-wide state; callers that need isolation build more
// than one Session.
package session
