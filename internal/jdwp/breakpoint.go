/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// BreakpointKind is the kind of event request a breakpoint was created for.
type BreakpointKind uint8

const (
	LineBreakpoint BreakpointKind = iota
	ExceptionBreakpoint
	FieldBreakpoint
	MethodBreakpoint
)

func (k BreakpointKind) String() string {
	switch k {
	case LineBreakpoint:
		return "line"
	case ExceptionBreakpoint:
		return "exception"
	case FieldBreakpoint:
		return "field"
	case MethodBreakpoint:
		return "method"
	default:
		return fmt.Sprintf("BreakpointKind(%d)", uint8(k))
	}
}

var nextBreakpointID atomic.Int64

// Breakpoint is the engine-level breakpoint installed on behalf of a BreakpointInfo.
// A single BreakpointInfo may be backed by multiple Breakpoints (e.g. method entry breakpoints
// install one breakpoint per method of the class).
type Breakpoint struct {
	ID int64

	// Source and Line identify the location of line breakpoints.
	// Line is -1 for breakpoints on sources without line information.
	Source string
	Line   int

	// Caught and Uncaught select which exceptions trigger an exception breakpoint.
	Caught   bool
	Uncaught bool

	// IgnoreCount is the number of hits the engine should skip before reporting the breakpoint.
	IgnoreCount int

	Kind BreakpointKind
}

func newLineBreakpoint(source string, line int) *Breakpoint {
	return &Breakpoint{
		ID:     nextBreakpointID.Add(1),
		Source: source,
		Line:   line,
		Kind:   LineBreakpoint,
	}
}

func newExceptionBreakpoint(caught, uncaught bool) *Breakpoint {
	return &Breakpoint{
		ID:       nextBreakpointID.Add(1),
		Line:     -1,
		Caught:   caught,
		Uncaught: uncaught,
		Kind:     ExceptionBreakpoint,
	}
}

func (bp *Breakpoint) String() string {
	if bp.Kind == ExceptionBreakpoint {
		return fmt.Sprintf("exception breakpoint #%d (caught=%t, uncaught=%t)", bp.ID, bp.Caught, bp.Uncaught)
	}
	return fmt.Sprintf("breakpoint #%d at %s:%d", bp.ID, bp.Source, bp.Line)
}

// BreakpointInfo is the debugger-side description of a breakpoint request.
type BreakpointInfo struct {
	RequestID     int
	Kind          BreakpointKind
	SuspendPolicy SuspendPolicy
	Filter        *RequestFilter

	// Thread restricts the breakpoint to a single thread (nil means any thread).
	Thread Thread

	// Klass restricts exception breakpoints to instances of the class (nil means any exception).
	Klass KlassRef

	Caught   bool
	Uncaught bool

	lock        *sync.Mutex
	breakpoints []*Breakpoint
}

func NewBreakpointInfo(filter *RequestFilter, kind BreakpointKind, suspendPolicy SuspendPolicy) *BreakpointInfo {
	if filter == nil {
		filter = NewRequestFilter(0)
	}
	return &BreakpointInfo{
		RequestID:     filter.RequestID,
		Kind:          kind,
		SuspendPolicy: suspendPolicy,
		Filter:        filter,
		Thread:        filter.Thread,
		lock:          &sync.Mutex{},
	}
}

func (bi *BreakpointInfo) IsLineBreakpoint() bool {
	return bi.Kind == LineBreakpoint
}

func (bi *BreakpointInfo) IsExceptionBreakpoint() bool {
	return bi.Kind == ExceptionBreakpoint
}

func (bi *BreakpointInfo) addBreakpoint(bp *Breakpoint) {
	bi.lock.Lock()
	defer bi.lock.Unlock()
	bi.breakpoints = append(bi.breakpoints, bp)
}

// Breakpoints returns the engine breakpoints installed for this request.
func (bi *BreakpointInfo) Breakpoints() []*Breakpoint {
	bi.lock.Lock()
	defer bi.lock.Unlock()
	return append([]*Breakpoint(nil), bi.breakpoints...)
}

// FieldBreakpointInfo describes a field access or modification watchpoint.
type FieldBreakpointInfo struct {
	*BreakpointInfo
	FieldName    string
	Access       bool
	Modification bool
}

func (fi *FieldBreakpointInfo) IsAccessBreakpoint() bool {
	return fi.Access
}

func (fi *FieldBreakpointInfo) IsModificationBreakpoint() bool {
	return fi.Modification
}

// FieldBreakpointEvent is a field access or modification observed by the engine.
type FieldBreakpointEvent struct {
	Info     *FieldBreakpointInfo
	Receiver any
	// Value is the new value for modification events.
	Value any
}

// MethodBreakpointEvent is a method entry or exit observed by the engine.
type MethodBreakpointEvent struct {
	Info        *BreakpointInfo
	Method      MethodRef
	ReturnValue any
}

// SourceLocation is the location of a line breakpoint.
type SourceLocation struct {
	Source string
	Line   int
}

func (sl SourceLocation) String() string {
	return fmt.Sprintf("%s:%d", sl.Source, sl.Line)
}

// DebuggerCommand is a breakpoint submission request from the protocol layer.
type DebuggerCommand struct {
	Kind           StepKind
	SourceLocation SourceLocation
	Info           *BreakpointInfo
}
