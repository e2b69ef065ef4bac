/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwptest

import (
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

type EventKind string

const (
	BreakpointHitEvent       EventKind = "BreakpointHit"
	StepCompletedEvent       EventKind = "StepCompleted"
	ExceptionThrownEvent     EventKind = "ExceptionThrown"
	FieldAccessEvent         EventKind = "FieldAccess"
	FieldModificationEvent   EventKind = "FieldModification"
	MethodBreakpointHitEvent EventKind = "MethodBreakpointHit"
	VMDiedEvent              EventKind = "VMDied"
)

type RecordedEvent struct {
	Kind      EventKind
	Thread    jdwp.Thread
	Info      *jdwp.BreakpointInfo
	Stepping  *jdwp.SteppingInfo
	Frame     *jdwp.CallFrame
	Exception any
}

// Listener records the events it receives.
type Listener struct {
	lock   *sync.Mutex
	events []RecordedEvent

	// OnEvent, if set, is called synchronously (on the delivering goroutine) for every event.
	OnEvent func(ev RecordedEvent)
}

func NewListener() *Listener {
	return &Listener{lock: &sync.Mutex{}}
}

func (l *Listener) Events() []RecordedEvent {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.events)
}

// EventsOfKind returns the recorded events of the given kind.
func (l *Listener) EventsOfKind(kind EventKind) []RecordedEvent {
	var retval []RecordedEvent
	for _, ev := range l.Events() {
		if ev.Kind == kind {
			retval = append(retval, ev)
		}
	}
	return retval
}

func (l *Listener) record(ev RecordedEvent) error {
	l.lock.Lock()
	l.events = append(l.events, ev)
	onEvent := l.OnEvent
	l.lock.Unlock()

	if onEvent != nil {
		onEvent(ev)
	}
	return nil
}

func (l *Listener) BreakpointHit(info *jdwp.BreakpointInfo, frame *jdwp.CallFrame, thread jdwp.Thread) error {
	return l.record(RecordedEvent{Kind: BreakpointHitEvent, Thread: thread, Info: info, Frame: frame})
}

func (l *Listener) StepCompleted(info *jdwp.SteppingInfo, frame *jdwp.CallFrame) error {
	return l.record(RecordedEvent{Kind: StepCompletedEvent, Stepping: info, Frame: frame})
}

func (l *Listener) ExceptionThrown(info *jdwp.BreakpointInfo, thread jdwp.Thread, exception any, frames []*jdwp.CallFrame) error {
	var top *jdwp.CallFrame
	if len(frames) > 0 {
		top = frames[0]
	}
	return l.record(RecordedEvent{Kind: ExceptionThrownEvent, Thread: thread, Info: info, Frame: top, Exception: exception})
}

func (l *Listener) FieldAccessBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	return l.record(RecordedEvent{Kind: FieldAccessEvent, Thread: thread, Info: event.Info.BreakpointInfo, Frame: frame})
}

func (l *Listener) FieldModificationBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	return l.record(RecordedEvent{Kind: FieldModificationEvent, Thread: thread, Info: event.Info.BreakpointInfo, Frame: frame})
}

func (l *Listener) MethodBreakpointHit(event *jdwp.MethodBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	return l.record(RecordedEvent{Kind: MethodBreakpointHitEvent, Thread: thread, Info: event.Info, Frame: frame})
}

func (l *Listener) VMDied() error {
	return l.record(RecordedEvent{Kind: VMDiedEvent})
}

// MockListener is a jdwp.EventListener backed by testify mock, for tests that need to script failures.
type MockListener struct {
	mock.Mock
}

func (m *MockListener) BreakpointHit(info *jdwp.BreakpointInfo, frame *jdwp.CallFrame, thread jdwp.Thread) error {
	args := m.Called(info, frame, thread)
	return args.Error(0)
}

func (m *MockListener) StepCompleted(info *jdwp.SteppingInfo, frame *jdwp.CallFrame) error {
	args := m.Called(info, frame)
	return args.Error(0)
}

func (m *MockListener) ExceptionThrown(info *jdwp.BreakpointInfo, thread jdwp.Thread, exception any, frames []*jdwp.CallFrame) error {
	args := m.Called(info, thread, exception, frames)
	return args.Error(0)
}

func (m *MockListener) FieldAccessBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	args := m.Called(event, thread, frame)
	return args.Error(0)
}

func (m *MockListener) FieldModificationBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	args := m.Called(event, thread, frame)
	return args.Error(0)
}

func (m *MockListener) MethodBreakpointHit(event *jdwp.MethodBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	args := m.Called(event, thread, frame)
	return args.Error(0)
}

func (m *MockListener) VMDied() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ jdwp.EventListener = (*Listener)(nil)
	_ jdwp.EventListener = (*MockListener)(nil)
)
