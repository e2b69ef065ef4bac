/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

// SetBeforeParkHook installs a function that runs on the guest goroutine after events
// have been sent and before the thread parks. Must be called before any callback runs.
func SetBeforeParkHook(c *Controller, hook func(t Thread)) {
	c.hooks.beforePark = hook
}
