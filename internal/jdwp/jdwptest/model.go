/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package jdwptest provides a scripted execution engine and listeners for testing the debugger controller.
package jdwptest

import (
	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

type Thread struct {
	id   int64
	name string
}

func NewThread(id int64, name string) *Thread {
	return &Thread{id: id, name: name}
}

func (t *Thread) ID() int64 {
	return t.id
}

func (t *Thread) Name() string {
	return t.name
}

type Klass struct {
	KlassID   int64
	KlassName string
	Methods   []*Method
}

func NewKlass(id int64, name string) *Klass {
	return &Klass{KlassID: id, KlassName: name}
}

// AddMethod creates a method of the class spanning the given lines.
// The first bytecode index of each line is (line - firstLine) * 10.
func (k *Klass) AddMethod(id int64, name string, source string, firstLine, lastLine int) *Method {
	m := &Method{
		MethodID:   id,
		MethodName: name,
		Klass:      k,
		SourceName: source,
		First:      firstLine,
		Last:       lastLine,
	}
	k.Methods = append(k.Methods, m)
	return m
}

func (k *Klass) ID() int64 {
	return k.KlassID
}

func (k *Klass) Name() string {
	return k.KlassName
}

func (k *Klass) TypeTag() byte {
	return jdwp.TypeTagClass
}

func (k *Klass) DeclaredMethods() []jdwp.MethodRef {
	retval := make([]jdwp.MethodRef, 0, len(k.Methods))
	for _, m := range k.Methods {
		retval = append(retval, m)
	}
	return retval
}

type Method struct {
	MethodID   int64
	MethodName string
	Klass      *Klass
	SourceName string
	First      int
	Last       int
}

func (m *Method) ID() int64 {
	return m.MethodID
}

func (m *Method) Name() string {
	return m.MethodName
}

func (m *Method) DeclaringKlass() jdwp.KlassRef {
	return m.Klass
}

func (m *Method) Source() string {
	return m.SourceName
}

func (m *Method) FirstLine() int {
	return m.First
}

func (m *Method) LastLine() int {
	return m.Last
}

func (m *Method) BCIFromLine(line int) int64 {
	if m.First == -1 || line < m.First || line > m.Last {
		return -1
	}
	return int64(line-m.First) * 10
}

type Frame struct {
	MethodRef *Method
	Index     int64
	Receiver  any
}

// NewFrame creates a frame executing the method at the given bytecode index.
func NewFrame(m *Method, index int64) *Frame {
	return &Frame{MethodRef: m, Index: index}
}

func (f *Frame) Method() jdwp.MethodRef {
	if f.MethodRef == nil {
		return nil
	}
	return f.MethodRef
}

func (f *Frame) CodeIndex() int64 {
	return f.Index
}

func (f *Frame) This() any {
	return f.Receiver
}

var (
	_ jdwp.Thread     = (*Thread)(nil)
	_ jdwp.KlassRef   = (*Klass)(nil)
	_ jdwp.MethodRef  = (*Method)(nil)
	_ jdwp.StackFrame = (*Frame)(nil)
)
