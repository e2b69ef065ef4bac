/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package jdwp coordinates the suspension and resumption of guest threads on behalf of a JDWP debugger.
//
// The Controller keeps a suspension count for every guest thread. A thread runs only when its count
// is zero; Suspend() and Resume() calls nest. Guest threads stop cooperatively: the execution engine
// calls Controller.OnSuspend() on the goroutine of the thread that reached a safepoint, and the callback
// parks that goroutine until the debugger resumes the thread. While parked, a thread can run jobs
// posted with PostJobForThread(), e.g. method invocations requested by the debugger.
//
// Events are sent to the debugger through an EventListener. An event is sent only after the suspension
// it reports has been accounted for, so a resume command sent in response to the event always finds
// the thread suspended.
package jdwp
