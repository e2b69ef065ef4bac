/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testKlass struct {
	name string
}

func (k *testKlass) ID() int64                    { return 1 }
func (k *testKlass) Name() string                 { return k.name }
func (k *testKlass) TypeTag() byte                { return TypeTagClass }
func (k *testKlass) DeclaredMethods() []MethodRef { return nil }

func TestClassPatterns(t *testing.T) {
	t.Parallel()

	require.True(t, MatchesAnyClassPattern([]string{"java.util.*"}, "java.util.HashMap"))
	require.True(t, MatchesAnyClassPattern([]string{"*.Foo"}, "com.example.Foo"))
	require.True(t, MatchesAnyClassPattern([]string{"org.*", "com.example.Foo"}, "com.example.Foo"))
	require.False(t, MatchesAnyClassPattern([]string{"java.util.*"}, "java.lang.String"))
	require.False(t, MatchesAnyClassPattern(nil, "java.lang.String"))
	require.Equal(t, "java.lang.String", JavaName("java/lang/String"))
}

func TestIsKlassExcluded(t *testing.T) {
	t.Parallel()

	str := &testKlass{name: "java/lang/String"}
	app := &testKlass{name: "com/example/App"}

	filter := NewRequestFilter(1)
	require.False(t, filter.IsKlassExcluded(str))
	require.False(t, filter.IsKlassExcluded(nil))

	filter.ExcludePatterns = []string{"java.*", "sun.*"}
	require.True(t, filter.IsKlassExcluded(str))
	require.False(t, filter.IsKlassExcluded(app))

	filter.ExcludePatterns = nil
	filter.IncludePatterns = []string{"com.example.*"}
	require.True(t, filter.IsKlassExcluded(str))
	require.False(t, filter.IsKlassExcluded(app))
}

func TestEventFilters(t *testing.T) {
	t.Parallel()

	filters := NewEventFilters()
	require.Nil(t, filters.GetRequestFilter(1))

	first := NewRequestFilter(1)
	second := NewRequestFilter(2)
	filters.AddRequestFilter(first)
	filters.AddRequestFilter(second)
	require.Same(t, first, filters.GetRequestFilter(1))

	filters.RemoveRequestFilter(1)
	require.Nil(t, filters.GetRequestFilter(1))
	require.Same(t, second, filters.GetRequestFilter(2))

	filters.Clear()
	require.Nil(t, filters.GetRequestFilter(2))
}
