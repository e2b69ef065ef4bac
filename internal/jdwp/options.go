/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultTransport = "dt_socket"
	DefaultHost      = "localhost"
	DefaultPort      = 8000
)

// Options are the JDWP agent options, as passed with -agentlib:jdwp=...
type Options struct {
	Transport string
	Host      string
	Port      int
	// Server tells whether the agent listens for the debugger (true) or attaches to it (false).
	Server bool
	// Suspend tells whether the VM waits for the debugger before running guest code.
	Suspend bool
}

func DefaultOptions() Options {
	return Options{
		Transport: DefaultTransport,
		Host:      DefaultHost,
		Port:      DefaultPort,
		Server:    true,
		Suspend:   true,
	}
}

// ParseOptions parses a JDWP agent option string such as
// "transport=dt_socket,server=y,suspend=n,address=*:8000".
// Options that are not present keep their default values.
func ParseOptions(s string) (Options, error) {
	opts := DefaultOptions()
	if strings.TrimSpace(s) == "" {
		return opts, nil
	}

	for _, part := range strings.Split(s, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return Options{}, fmt.Errorf("%w: option '%s' is not a key=value pair", ErrInvalidOptions, part)
		}

		switch key {
		case "transport":
			if value != DefaultTransport {
				return Options{}, fmt.Errorf("%w: unsupported transport '%s'", ErrInvalidOptions, value)
			}
			opts.Transport = value

		case "server", "suspend":
			flag, flagErr := parseYesNo(value)
			if flagErr != nil {
				return Options{}, fmt.Errorf("%w: option '%s': %w", ErrInvalidOptions, key, flagErr)
			}
			if key == "server" {
				opts.Server = flag
			} else {
				opts.Suspend = flag
			}

		case "address":
			host, port, addrErr := parseAddress(value)
			if addrErr != nil {
				return Options{}, fmt.Errorf("%w: address '%s': %w", ErrInvalidOptions, value, addrErr)
			}
			opts.Host = host
			opts.Port = port

		default:
			return Options{}, fmt.Errorf("%w: unknown option '%s'", ErrInvalidOptions, key)
		}
	}

	return opts, nil
}

// Address returns the host:port the agent listens on or connects to.
func (o Options) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Options) String() string {
	return fmt.Sprintf("transport=%s,server=%s,suspend=%s,address=%s", o.Transport, yesNo(o.Server), yesNo(o.Suspend), o.Address())
}

func parseYesNo(value string) (bool, error) {
	switch value {
	case "y":
		return true, nil
	case "n":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'y' or 'n', got '%s'", value)
	}
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// parseAddress accepts "port", "host:port" and "*:port" (any interface).
func parseAddress(value string) (string, int, error) {
	host := DefaultHost
	portStr := value
	if strings.Contains(value, ":") {
		var splitErr error
		host, portStr, splitErr = net.SplitHostPort(value)
		if splitErr != nil {
			return "", 0, splitErr
		}
		if host == "*" {
			host = "0.0.0.0"
		}
	}

	port, portErr := strconv.Atoi(portStr)
	if portErr != nil {
		return "", 0, fmt.Errorf("invalid port '%s'", portStr)
	}
	if port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range", port)
	}
	return host, port, nil
}
