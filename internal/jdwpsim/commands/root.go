/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"

	"github.com/wiltonlazary/jdwpcore/pkg/logger"
)

func NewRootCommand(log *logger.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jdwpsim",
		Short: "Runs simulated guest threads under the JDWP debugger controller",
		Long: `jdwpsim runs a small simulated Java program under the JDWP debugger controller.

	Debugger events are reported as Debug Adapter Protocol events, either on standard output
	or over a connection to a debugger front end. Stopped threads are resumed automatically.`,
		SilenceUsage: true,
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddCommand(NewRunCommand(log.Logger))

	log.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd
}
