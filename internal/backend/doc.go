// Package backend is the HTTP transport shared by every call Keroro makes to
// the workflow backend.
//
// Requests are JSON in and JSON out. Each logical request carries one
// X-Request-ID across its attempts and is retried on network failures,
// per-attempt timeouts and the transient statuses 408, 429, 500, 502, 503 and
// 504, waiting base×attempt between attempts. Caller cancellation is never
// retried. Final failures surface as *TransportError or *ApplicationError,
// both classifiable through the markers in internal/services.
package backend
