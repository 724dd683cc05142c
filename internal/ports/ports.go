// Package ports discovers unused TCP ports on the loopback interface.
//
// The OS picks an ephemeral port for a transient listener which is then
// closed. Nothing stops another process from grabbing the port between that
// close and the moment the app under test binds it; the window is small and
// the race is accepted rather than worked around.
package ports

import (
	"fmt"
	"net"
	"sync"
)

const loopback = "127.0.0.1:0"

// FindFreePort returns a port that was free a moment ago. Two sequential
// calls may return the same value once the first port has been released.
func FindFreePort() (int, error) {
	ports, err := FindFreePorts(1)
	if err != nil {
		return 0, err
	}
	return ports[0], nil
}

// FindFreePorts returns n pairwise distinct ports. All listeners stay open
// until every port has been read, so the OS cannot hand out a duplicate.
func FindFreePorts(n int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()

	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", loopback)
		if err != nil {
			return nil, fmt.Errorf("find free port: %w", err)
		}
		listeners = append(listeners, l)
		ports = append(ports, l.Addr().(*net.TCPAddr).Port)
	}
	return ports, nil
}

// maxLeaseAttempts bounds how often Acquire asks the OS for a port that is
// not already leased.
const maxLeaseAttempts = 20

// Pool leases ports right before each launch. A leased port is never handed
// to a second caller until it is released, so concurrent launches stay
// distinct without reserving ports long before they are bound.
type Pool struct {
	find func() (int, error)

	mu     sync.Mutex
	leased map[int]bool
}

// NewPool returns a Pool backed by FindFreePort.
func NewPool() *Pool {
	return &Pool{find: FindFreePort, leased: make(map[int]bool)}
}

// Acquire returns a free port that is not leased and leases it.
func (p *Pool) Acquire() (int, error) {
	for i := 0; i < maxLeaseAttempts; i++ {
		port, err := p.find()
		if err != nil {
			return 0, err
		}
		p.mu.Lock()
		if !p.leased[port] {
			p.leased[port] = true
			p.mu.Unlock()
			return port, nil
		}
		p.mu.Unlock()
	}
	return 0, fmt.Errorf("find free port: every candidate is already leased after %d attempts", maxLeaseAttempts)
}

// Release returns port to the pool. Releasing an unleased port is a no-op.
func (p *Pool) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, port)
}

// Leased returns the number of ports currently leased.
func (p *Pool) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leased)
}
