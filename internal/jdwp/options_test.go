/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	t.Parallel()

	type testcase struct {
		description string
		input       string
		expected    Options
	}

	testcases := []testcase{
		{
			description: "empty string yields defaults",
			input:       "",
			expected:    DefaultOptions(),
		},
		{
			description: "port only",
			input:       "transport=dt_socket,address=5005",
			expected:    Options{Transport: DefaultTransport, Host: DefaultHost, Port: 5005, Server: true, Suspend: true},
		},
		{
			description: "any interface",
			input:       "server=y,suspend=n,address=*:8787",
			expected:    Options{Transport: DefaultTransport, Host: "0.0.0.0", Port: 8787, Server: true, Suspend: false},
		},
		{
			description: "attach to debugger",
			input:       "server=n, address=ide.local:9000",
			expected:    Options{Transport: DefaultTransport, Host: "ide.local", Port: 9000, Server: false, Suspend: true},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.description, func(t *testing.T) {
			t.Parallel()
			opts, err := ParseOptions(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, opts)
		})
	}
}

func TestParseOptionsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"transport=dt_shmem",
		"server=yes",
		"suspend",
		"address=localhost:http",
		"address=70000",
		"launch=/bin/true",
	}

	for _, input := range inputs {
		_, err := ParseOptions(input)
		require.ErrorIs(t, err, ErrInvalidOptions, "input: %s", input)
	}
}

func TestOptionsString(t *testing.T) {
	t.Parallel()

	opts, err := ParseOptions("server=n,suspend=n,address=10.0.0.1:8000")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:8000", opts.Address())

	roundTripped, err := ParseOptions(opts.String())
	require.NoError(t, err)
	require.Equal(t, opts, roundTripped)
}
