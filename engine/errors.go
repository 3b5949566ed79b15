package engine

import (
	"errors"
	"fmt"
)

// Bind failures.
var (
	ErrUnresolvedNodeReference = errors.New("engine: unresolved node reference")
	ErrMissingEntryOrTerminal  = errors.New("engine: graph needs exactly one BeginRequest and one EndRequest")
	ErrDuplicateNodeID         = errors.New("engine: duplicate graph node id")
	ErrDanglingEdge            = errors.New("engine: edge references an unknown node")
	ErrUnknownInternalNode     = errors.New("engine: unknown internal node")
)

// Dispatch failures.
var (
	ErrMissingUpstreamOutput = errors.New("engine: upstream output not produced")
	ErrInvalidCondition      = errors.New("engine: breaker condition is not a boolean")
	ErrScriptCompile         = errors.New("engine: script compile error")
	ErrScriptRuntime         = errors.New("engine: script runtime error")
	ErrEntryFunctionMissing  = errors.New("engine: script entry function missing")
	ErrMissingDeclaredOutput = errors.New("engine: declared output missing from script result")
)

// Run and result failures.
var (
	ErrGraphNeverTerminates = errors.New("engine: frontier emptied before EndRequest was reached")
	ErrResultDecode         = errors.New("engine: terminal result missing or malformed")
	ErrRunNotComplete       = errors.New("engine: run has not reached EndRequest")
	ErrNotBound             = errors.New("engine: graph is not bound")
)

// BindError aborts a run before anything executes.
type BindError struct {
	NodeID string
	Err    error
}

func (e *BindError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("bind: %v", e.Err)
	}
	return fmt.Sprintf("bind node %s: %v", e.NodeID, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// DispatchError is a node failure inside a wave. It is fatal to the run.
type DispatchError struct {
	NodeID string
	Name   string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch node %s (%s): %v", e.NodeID, e.Name, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ResultError reports a terminal payload that cannot be returned.
type ResultError struct {
	NodeID string
	Err    error
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("result from node %s: %v", e.NodeID, e.Err)
}

func (e *ResultError) Unwrap() error { return e.Err }
