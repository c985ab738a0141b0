// Package ipc exposes the daemon's job queue and worker pool over
// JSON-RPC on a Unix domain socket, and ships the matching client used by
// the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and
// conversions between store.JobRecord and lightweight wire
// representations. The server delegates to a *store.Store and a
// *jobqueue.Pool directly; it holds no daemon state of its own. The
// client decorates calls with connection timeouts so CLI commands fail
// fast when the daemon is offline.
//
// Reuse these types when adding new RPC endpoints to keep the protocol
// stable and compatible with existing command implementations.
package ipc
