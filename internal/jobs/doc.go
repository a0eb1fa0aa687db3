// Package jobs submits workflows to the backend and follows the resulting
// jobs until they finish.
//
// Client wraps the job endpoints. Status treats a 404 as a failed job rather
// than an error so that pollers and renderers only ever handle snapshots.
// Poller follows one job at a time on a fixed interval and gives up quietly
// after a run of consecutive fetch failures.
package jobs
