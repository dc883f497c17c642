// Package memory содержит хранилища в памяти процесса для STORAGE_DRIVER=memory и тестов.
package memory

import "sync"

// keyedLocker выдаёт мьютекс на ключ и освобождает его, когда ключ никто не держит.
// Критические секции разных ключей не блокируют друг друга.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock захватывает ключ и возвращает функцию освобождения.
func (l *keyedLocker) Lock(key string) func() {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
