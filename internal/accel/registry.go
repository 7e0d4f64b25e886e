package accel

import (
	"fmt"
	"sync"
)

// Opener opens a device of one backend.
type Opener func(cfg Config) (Device, error)

var (
	mu       sync.RWMutex
	backends = map[DeviceType]Opener{}
)

// Register makes a backend available to Open. It is meant to be called from
// the backend package's init.
func Register(t DeviceType, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := backends[t]; dup {
		panic(fmt.Sprintf("accel: backend %s registered twice", t))
	}
	backends[t] = open
}

// Open opens the device described by cfg.
func Open(cfg Config) (Device, error) {
	mu.RLock()
	open, ok := backends[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, &ResourceError{Op: "open " + cfg.Type.String(), Err: ErrNoBackend}
	}
	if cfg.Index < 0 {
		return nil, &ResourceError{Op: "open " + cfg.Type.String(), Err: fmt.Errorf("%w: %d", ErrNoDevice, cfg.Index)}
	}
	return open(cfg)
}
