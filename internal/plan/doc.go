// Package plan implements deferred execution.
//
// A Plan is a virtual peer. The first time it is invoked it runs its
// blueprint against placeholder inputs located at itself, and every message
// the blueprint's pointers send it is recorded instead of executed. Later
// invocations replay the recording with the invocation's argument and result
// identifiers substituted, either against the plan's owner or, after Send,
// at a remote peer that receives the recording once.
//
// A Plan is single-threaded: callers must not invoke one Plan from several
// goroutines at the same time.
package plan
