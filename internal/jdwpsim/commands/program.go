/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/wiltonlazary/jdwpcore/internal/simvm"
)

const demoSource = "Main.java"

// demoProgram is the simulated program run by jdwpsim:
//
//	10 compute() { step(); synchronized (lock) { step(); } }
//	20 validate() { step(); throw new IllegalStateException(); }
//	30 main() { step(); compute(); validate(); step(); }
type demoProgram struct {
	runtimeException *simvm.Class
	main             *simvm.Method
}

func defineDemoProgram(vm *simvm.VM) demoProgram {
	lock := &simvm.Monitor{Name: "lock"}

	mainClass := vm.DefineClass("com/example/Main", nil)
	runtimeException := vm.DefineClass("java/lang/RuntimeException", nil)
	stateException := vm.DefineClass("java/lang/IllegalStateException", runtimeException)

	compute := mainClass.DefineMethod(1, "compute", demoSource, 10).
		SetBody(simvm.Nop(), simvm.MonitorEnter(lock), simvm.Nop(), simvm.MonitorExit(lock))
	validate := mainClass.DefineMethod(2, "validate", demoSource, 20).
		SetBody(simvm.Nop(), simvm.Throw(stateException))
	main := mainClass.DefineMethod(3, "main", demoSource, 30).
		SetBody(simvm.Nop(), simvm.Call(compute), simvm.Call(validate), simvm.Nop())

	return demoProgram{runtimeException: runtimeException, main: main}
}
