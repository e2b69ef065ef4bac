// Copyright (c) Microsoft Corporation. All rights reserved.

package syncmap_test

import (
	"cmp"
	"sync"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/wiltonlazary/jdwpcore/pkg/syncmap"
)

func TestLoadOrStoreNewKeepsExistingValue(t *testing.T) {
	t.Parallel()

	var m syncmap.Map[string, *int]
	first := 1
	v, loaded := m.LoadOrStoreNew("a", func() *int { return &first })
	require.False(t, loaded)
	require.Same(t, &first, v)

	second := 2
	v, loaded = m.LoadOrStoreNew("a", func() *int { return &second })
	require.True(t, loaded)
	require.Same(t, &first, v)
}

func TestNilValuesLoadAsZero(t *testing.T) {
	t.Parallel()

	var m syncmap.Map[int, *string]
	m.Store(1, nil)
	v, found := m.Load(1)
	require.True(t, found)
	require.Nil(t, v)

	v, found = m.LoadAndDelete(1)
	require.True(t, found)
	require.Nil(t, v)

	_, found = m.Load(1)
	require.False(t, found)
}

func TestKeysLenClear(t *testing.T) {
	t.Parallel()

	var m syncmap.Map[int, string]
	require.Equal(t, 0, m.Len())

	m.Store(3, "c")
	m.Store(1, "a")
	m.Store(2, "b")
	require.Equal(t, 3, m.Len())

	byValue := cmpopts.SortSlices(cmp.Less[int])
	require.True(t, gocmp.Equal([]int{1, 2, 3}, m.Keys(), byValue))

	m.Clear()
	require.Equal(t, 0, m.Len())
	require.True(t, gocmp.Equal([]int{}, m.Keys(), cmpopts.EquateEmpty()))
}

func TestRangeAllowsModification(t *testing.T) {
	t.Parallel()

	var m syncmap.Map[int, string]
	for i := range 5 {
		m.Store(i, "v")
	}

	visited := 0
	m.Range(func(key int, _ string) bool {
		visited++
		m.Delete(key)
		return true
	})
	require.Equal(t, 5, visited)
	require.Equal(t, 0, m.Len())
}

func TestConcurrentStores(t *testing.T) {
	t.Parallel()

	var m syncmap.Map[int, int]
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Store(i, i*i)
		}()
	}
	wg.Wait()

	require.Equal(t, 50, m.Len())
	v, found := m.Load(7)
	require.True(t, found)
	require.Equal(t, 49, v)
}
