/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package simvm

import (
	"fmt"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

// Every statement occupies one source line and this many bytecode indices.
const bytecodesPerLine = 10

type OpCode uint8

const (
	OpNop OpCode = iota
	OpCall
	OpThrow
	OpMonitorEnter
	OpMonitorExit
)

// Statement is a single line of a simulated method.
type Statement struct {
	Op        OpCode
	Callee    *Method
	Exception *Class
	Monitor   *Monitor
}

func Nop() Statement {
	return Statement{Op: OpNop}
}

func Call(callee *Method) Statement {
	return Statement{Op: OpCall, Callee: callee}
}

// Throw raises (and immediately catches) an instance of the exception class.
func Throw(exception *Class) Statement {
	return Statement{Op: OpThrow, Exception: exception}
}

func MonitorEnter(m *Monitor) Statement {
	return Statement{Op: OpMonitorEnter, Monitor: m}
}

func MonitorExit(m *Monitor) Statement {
	return Statement{Op: OpMonitorExit, Monitor: m}
}

type Class struct {
	id      int64
	name    string
	super   *Class
	methods []*Method
}

func (c *Class) ID() int64 {
	return c.id
}

// Name returns the class name in internal form ("com/example/Main").
func (c *Class) Name() string {
	return c.name
}

func (c *Class) TypeTag() byte {
	return jdwp.TypeTagClass
}

func (c *Class) DeclaredMethods() []jdwp.MethodRef {
	retval := make([]jdwp.MethodRef, 0, len(c.methods))
	for _, m := range c.methods {
		retval = append(retval, m)
	}
	return retval
}

func (c *Class) isSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

// DefineMethod adds a method whose first statement is at the given line of the source.
// The body is set with SetBody(), so that methods can call each other.
func (c *Class) DefineMethod(id int64, name string, source string, firstLine int) *Method {
	m := &Method{id: id, name: name, class: c, source: source, firstLine: firstLine}
	c.methods = append(c.methods, m)
	return m
}

type Method struct {
	id        int64
	name      string
	class     *Class
	source    string
	firstLine int
	body      []Statement
}

func (m *Method) SetBody(body ...Statement) *Method {
	m.body = body
	return m
}

func (m *Method) ID() int64 {
	return m.id
}

func (m *Method) Name() string {
	return m.name
}

func (m *Method) DeclaringKlass() jdwp.KlassRef {
	return m.class
}

func (m *Method) Source() string {
	return m.source
}

func (m *Method) FirstLine() int {
	if len(m.body) == 0 {
		return -1
	}
	return m.firstLine
}

func (m *Method) LastLine() int {
	if len(m.body) == 0 {
		return -1
	}
	return m.firstLine + len(m.body) - 1
}

func (m *Method) BCIFromLine(line int) int64 {
	if len(m.body) == 0 || line < m.firstLine || line > m.LastLine() {
		return -1
	}
	return int64(line-m.firstLine) * bytecodesPerLine
}

func (m *Method) hasLine(source string, line int) bool {
	return m.source == source && m.BCIFromLine(line) >= 0
}

// Object is a guest object, e.g. a thrown exception.
type Object struct {
	ID    int64
	Class *Class
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%d", jdwp.JavaName(o.Class.name), o.ID)
}

// Monitor is a guest monitor. Entering is re-entrant and never blocks.
type Monitor struct {
	Name string
}

var (
	_ jdwp.KlassRef  = (*Class)(nil)
	_ jdwp.MethodRef = (*Method)(nil)
)
