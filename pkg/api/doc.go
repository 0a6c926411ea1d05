// Package api defines the wire types for the enclave execution engine:
// the per-invocation request pair (ExecutionConfig, AgentInvocation), the
// normalized ExecutionResult envelope, the error taxonomy that every
// failure is folded into, and the invocation state machine.
//
// All types in this package are plain data. Construction happens in the
// caller, consumption happens in pkg/runner; nothing here touches the
// execution backend.
package api
