package ports

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	// The port must be bindable right after discovery.
	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	l.Close()
}

func TestFindFreePort_SequentialCallsMayRepeat(t *testing.T) {
	// Both calls succeed; equality is allowed and not asserted either way.
	first, err := FindFreePort()
	require.NoError(t, err)
	second, err := FindFreePort()
	require.NoError(t, err)
	assert.Greater(t, first, 0)
	assert.Greater(t, second, 0)
}

func TestFindFreePorts_Distinct(t *testing.T) {
	ports, err := FindFreePorts(16)
	require.NoError(t, err)
	require.Len(t, ports, 16)

	seen := make(map[int]bool)
	for _, p := range ports {
		assert.False(t, seen[p], "duplicate port %d", p)
		seen[p] = true
	}
}

func TestFindFreePorts_Zero(t *testing.T) {
	ports, err := FindFreePorts(0)
	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestPool_SkipsLeasedPorts(t *testing.T) {
	candidates := []int{5000, 5000, 5001}
	pool := &Pool{leased: make(map[int]bool), find: func() (int, error) {
		port := candidates[0]
		candidates = candidates[1:]
		return port, nil
	}}

	first, err := pool.Acquire()
	require.NoError(t, err)
	second, err := pool.Acquire()
	require.NoError(t, err)

	assert.Equal(t, 5000, first)
	assert.Equal(t, 5001, second)
	assert.Equal(t, 2, pool.Leased())

	pool.Release(first)
	pool.Release(first)
	assert.Equal(t, 1, pool.Leased())
}

func TestPool_GivesUpWhenEverythingIsLeased(t *testing.T) {
	pool := &Pool{leased: map[int]bool{5000: true}, find: func() (int, error) { return 5000, nil }}

	_, err := pool.Acquire()
	assert.Error(t, err)
}

func TestPool_Acquire(t *testing.T) {
	pool := NewPool()
	port, err := pool.Acquire()
	require.NoError(t, err)
	defer pool.Release(port)

	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	l.Close()
}
