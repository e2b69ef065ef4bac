/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"strings"

	"github.com/ryanuber/go-glob"

	"github.com/wiltonlazary/jdwpcore/pkg/syncmap"
)

// StepInfo is the step modifier of an event request.
type StepInfo struct {
	Thread Thread
	Size   int
	Depth  int
}

// RequestFilter holds the modifiers of a JDWP event request.
type RequestFilter struct {
	RequestID   int
	IgnoreCount int
	Thread      Thread

	// ThisFilter restricts the request to frames whose receiver is this object.
	ThisFilter any

	StepInfo *StepInfo

	// KlassRefPatterns are the classes selected by a ClassOnly modifier (method entry requests).
	KlassRefPatterns []KlassRef

	// IncludePatterns and ExcludePatterns are ClassMatch / ClassExclude patterns,
	// e.g. "java.util.*" or "*.Foo".
	IncludePatterns []string
	ExcludePatterns []string
}

func NewRequestFilter(requestID int) *RequestFilter {
	return &RequestFilter{
		RequestID: requestID,
	}
}

// IsKlassExcluded returns true if stepping should not stop in the given class.
func (rf *RequestFilter) IsKlassExcluded(klass KlassRef) bool {
	if klass == nil {
		return false
	}
	name := JavaName(klass.Name())

	if len(rf.IncludePatterns) > 0 && !MatchesAnyClassPattern(rf.IncludePatterns, name) {
		return true
	}
	return MatchesAnyClassPattern(rf.ExcludePatterns, name)
}

// JavaName converts an internal class name ("java/lang/String") to its dotted form.
func JavaName(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}

// MatchesAnyClassPattern reports whether the (dotted) class name matches any of the JDWP class patterns.
// A pattern is an exact name, or a name with a leading or trailing '*' wildcard.
func MatchesAnyClassPattern(patterns []string, className string) bool {
	for _, pattern := range patterns {
		if glob.Glob(pattern, className) {
			return true
		}
	}
	return false
}

// EventFilters is the registry of active event requests, keyed by request ID.
type EventFilters struct {
	filters syncmap.Map[int, *RequestFilter]
}

func NewEventFilters() *EventFilters {
	return &EventFilters{}
}

func (ef *EventFilters) AddRequestFilter(filter *RequestFilter) {
	ef.filters.Store(filter.RequestID, filter)
}

// GetRequestFilter returns the filter for the request, or nil if there is none.
func (ef *EventFilters) GetRequestFilter(requestID int) *RequestFilter {
	filter, _ := ef.filters.Load(requestID)
	return filter
}

func (ef *EventFilters) RemoveRequestFilter(requestID int) {
	ef.filters.Delete(requestID)
}

func (ef *EventFilters) Clear() {
	ef.filters.Range(func(requestID int, _ *RequestFilter) bool {
		ef.filters.Delete(requestID)
		return true
	})
}
