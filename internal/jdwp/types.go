/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import "fmt"

// Thread identifies a guest-language thread.
// Implementations must be pointer types: two Thread values are the same thread
// only if they are the same reference.
type Thread interface {
	ID() int64
	Name() string
}

// SuspendPolicy tells which threads are suspended when an event fires.
// The values match the JDWP SuspendPolicy constants.
type SuspendPolicy uint8

const (
	SuspendPolicyNone        SuspendPolicy = 0
	SuspendPolicyEventThread SuspendPolicy = 1
	SuspendPolicyAll         SuspendPolicy = 2
)

func (p SuspendPolicy) String() string {
	switch p {
	case SuspendPolicyNone:
		return "NONE"
	case SuspendPolicyEventThread:
		return "EVENT_THREAD"
	case SuspendPolicyAll:
		return "ALL"
	default:
		return fmt.Sprintf("SuspendPolicy(%d)", uint8(p))
	}
}

// Stronger returns the policy that suspends more threads (ALL > EVENT_THREAD > NONE).
func (p SuspendPolicy) Stronger(other SuspendPolicy) SuspendPolicy {
	if other > p {
		return other
	}
	return p
}

// StepKind is the kind of debugger command that set up pending stepping state for a thread.
type StepKind uint8

const (
	StepInto StepKind = iota
	StepOver
	StepOut
	SpecialStep
	SubmitLineBreakpoint
	SubmitExceptionBreakpoint
	SubmitMethodEntryBreakpoint
)

func (k StepKind) String() string {
	switch k {
	case StepInto:
		return "STEP_INTO"
	case StepOver:
		return "STEP_OVER"
	case StepOut:
		return "STEP_OUT"
	case SpecialStep:
		return "SPECIAL_STEP"
	case SubmitLineBreakpoint:
		return "SUBMIT_LINE_BREAKPOINT"
	case SubmitExceptionBreakpoint:
		return "SUBMIT_EXCEPTION_BREAKPOINT"
	case SubmitMethodEntryBreakpoint:
		return "SUBMIT_METHOD_ENTRY_BREAKPOINT"
	default:
		return fmt.Sprintf("StepKind(%d)", uint8(k))
	}
}

// TypeTag values as defined by JDWP.
const (
	TypeTagClass     byte = 1
	TypeTagInterface byte = 2
	TypeTagArray     byte = 3
)

// KlassRef is a reference to a guest class.
type KlassRef interface {
	ID() int64
	// Name returns the class name in internal form, e.g. "java/lang/String".
	Name() string
	TypeTag() byte
	DeclaredMethods() []MethodRef
}

// MethodRef is a reference to a guest method.
type MethodRef interface {
	ID() int64
	Name() string
	DeclaringKlass() KlassRef
	// Source returns the name of the source the method was compiled from.
	Source() string
	// FirstLine returns the first line of the method, or -1 if line information is not available.
	FirstLine() int
	// LastLine returns the last line of the method, or -1 if line information is not available.
	LastLine() int
	// BCIFromLine returns the first bytecode index of the given line, or -1.
	BCIFromLine(line int) int64
}

// StackFrame is a raw call frame as captured by the execution engine.
type StackFrame interface {
	Method() MethodRef
	// CodeIndex returns the bytecode index the engine computed for the frame, or -1 if unknown.
	CodeIndex() int64
	// This returns the receiver of the frame, or nil for static methods.
	This() any
}

// CallFrame is the debugger's view of a stack frame: a JDWP location plus the raw frame.
type CallFrame struct {
	ThreadID  int64
	TypeTag   byte
	KlassID   int64
	MethodID  int64
	CodeIndex int64
	Klass     KlassRef
	Method    MethodRef
	Frame     StackFrame
}

// ThisValue returns the receiver of the frame, if any.
func (cf *CallFrame) ThisValue() any {
	if cf.Frame == nil {
		return nil
	}
	return cf.Frame.This()
}

func (cf *CallFrame) String() string {
	klassName := "<unknown>"
	if cf.Klass != nil {
		klassName = cf.Klass.Name()
	}
	methodName := "<unknown>"
	if cf.Method != nil {
		methodName = cf.Method.Name()
	}
	return fmt.Sprintf("%s.%s@%d", klassName, methodName, cf.CodeIndex)
}

func newCallFrame(threadID int64, frame StackFrame, codeIndex int64) *CallFrame {
	method := frame.Method()
	klass := method.DeclaringKlass()
	return &CallFrame{
		ThreadID:  threadID,
		TypeTag:   klass.TypeTag(),
		KlassID:   klass.ID(),
		MethodID:  method.ID(),
		CodeIndex: codeIndex,
		Klass:     klass,
		Method:    method,
		Frame:     frame,
	}
}

// MonitorInfo describes a monitor owned by a thread.
type MonitorInfo struct {
	Monitor    any
	StackDepth int
}
