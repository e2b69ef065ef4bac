/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package syncmap provides a generic map that is safe for concurrent use.
package syncmap

import (
	"maps"
	"slices"
	"sync"
)

// Map is a map guarded by a read-write mutex. The zero value is an empty map ready to use.
// A Map must not be copied after first use.
type Map[Key comparable, Value any] struct {
	lock    sync.RWMutex
	entries map[Key]Value
}

func (m *Map[Key, Value]) Store(key Key, value Value) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.entries == nil {
		m.entries = make(map[Key]Value)
	}
	m.entries[key] = value
}

func (m *Map[Key, Value]) Load(key Key) (Value, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	value, found := m.entries[key]
	return value, found
}

func (m *Map[Key, Value]) Delete(key Key) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, key)
}

// LoadAndDelete removes the entry for the key and returns its value, if there was one.
func (m *Map[Key, Value]) LoadAndDelete(key Key) (Value, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	value, found := m.entries[key]
	if found {
		delete(m.entries, key)
	}
	return value, found
}

// LoadOrStoreNew returns the value for the key. If there is none, the value made by newValue
// is stored and returned. The boolean result is true if the value was already present.
// newValue runs while the map is locked and must not use the map.
func (m *Map[Key, Value]) LoadOrStoreNew(key Key, newValue func() Value) (Value, bool) {
	if value, found := m.Load(key); found {
		return value, true
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if value, found := m.entries[key]; found {
		return value, true
	}
	if m.entries == nil {
		m.entries = make(map[Key]Value)
	}
	value := newValue()
	m.entries[key] = value
	return value, false
}

// Range calls f for every entry of a snapshot of the map, until f returns false.
// f may modify the map.
func (m *Map[Key, Value]) Range(f func(key Key, value Value) bool) {
	m.lock.RLock()
	snapshot := maps.Clone(m.entries)
	m.lock.RUnlock()

	for key, value := range snapshot {
		if !f(key, value) {
			return
		}
	}
}

// Keys returns the keys present at the time of the call.
func (m *Map[Key, Value]) Keys() []Key {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return slices.Collect(maps.Keys(m.entries))
}

func (m *Map[Key, Value]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.entries)
}

func (m *Map[Key, Value]) Clear() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries = nil
}
