// Package blend runs multi-stream blending operations.
//
// A blend operation transfers several source products into one target tank
// to a recipe. The orchestrator owns the operation's lifecycle: it validates
// the request, allocates one flow controller per component, runs one control
// loop per component plus one monitoring task concurrently, and drives the
// state machine
//
//	planning → preparing → blending → completing → completed
//
// with terminal failed/stopped transitions from any non-terminal state.
//
// Safety model: any unrecoverable actuation error inside a single
// component's loop triggers emergency-stop semantics for the whole
// operation before the error is reported — a partial blend is never left
// physically running. Emergency stop closes every valve and zeroes every
// pump in parallel, best-effort, and is idempotent from any state.
//
// Each flow controller (and its device connection) is exclusively owned by
// the operation that created it; source-tank exclusivity across concurrent
// operations is enforced at StartBlend.
package blend
