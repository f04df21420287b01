package service

import (
	"context"
	"sync"
)

func NewCancelMap[K comparable]() *CancelMap[K] {
	return &CancelMap[K]{
		cancels: make(map[K]context.CancelCauseFunc),
	}
}

type CancelMap[K comparable] struct {
	m       sync.Mutex
	cancels map[K]context.CancelCauseFunc
}

func (m *CancelMap[K]) AddCancel(key K, cf context.CancelCauseFunc) {
	m.m.Lock()
	defer m.m.Unlock()
	m.cancels[key] = cf
}

func (m *CancelMap[K]) RemoveCancel(key K) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.cancels, key)
}

// Call cancels the context registered for key with cause. It reports false
// when nothing is registered.
func (m *CancelMap[K]) Call(key K, cause error) bool {
	m.m.Lock()
	cf, ok := m.cancels[key]
	m.m.Unlock()
	if ok {
		cf(cause)
	}
	return ok
}
