// Package workshop defines the types shared between the acquisition
// pipeline and the content service that backs it.
//
// A Session is the capability surface of the remote service: item queries,
// install lookups, download requests, progress sampling and a completion
// callback. Asynchronous results (query responses, completion notifications)
// are never delivered on a background goroutine; they are queued by the
// implementation and handed to the caller only from Pump, which the caller
// invokes on a fixed tick. This keeps every callback on the caller's single
// logical thread.
package workshop
