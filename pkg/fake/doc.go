// Package fake synthesizes plausible placeholder values for protobuf-described
// messages. Given a message descriptor it produces both a generic structured
// value (map[string]interface{}) and a typed dynamicpb message, so a mock
// server can answer any RPC before the real backend exists.
//
// Synthesis is a synchronous recursive walk over the descriptor tree:
//
//   - scalar fields get fixed literals from a lookup table, with distinct
//     magnitudes per width and signedness so tests can tell them apart
//   - string fields whose name starts or ends with "id" get a fresh UUID v4
//   - enum fields get the first declared value
//   - repeated fields get exactly one synthesized element
//   - map fields get exactly one entry
//   - oneof groups always select the first declared alternative
//   - self-referential message chains are cut off after a fixed depth,
//     yielding an empty structure at the limit
//
// Recursion bookkeeping is a per-invocation depth map threaded through the
// walk, never shared between calls, so concurrent synthesis is safe.
//
//	payload := fake.NewPayload(method.Output())
//	stream.SendMsg(payload.Message)
package fake
