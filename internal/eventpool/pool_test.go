package eventpool

import (
	"errors"
	"testing"

	"github.com/marcoeg/crypto-tracer/internal/event"
	"github.com/marcoeg/crypto-tracer/internal/tracererr"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(3)
	require.Equal(t, 3, p.Capacity())

	r1, err := p.Acquire()
	require.NoError(t, err)
	r2, err := p.Acquire()
	require.NoError(t, err)
	r3, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, 3, p.InUse())

	_, err = p.Acquire()
	require.Error(t, err)
	require.True(t, errors.Is(err, tracererr.ErrPoolExhausted))

	r1.PID = 1234
	r1.ProcessName = "nginx"
	require.NoError(t, p.Release(r1))
	require.Equal(t, 2, p.InUse())

	r4, err := p.Acquire()
	require.NoError(t, err)
	require.Equal(t, uint32(0), r4.PID)
	require.Equal(t, "", r4.ProcessName)

	require.NoError(t, p.Release(r2))
	require.NoError(t, p.Release(r3))
	require.NoError(t, p.Release(r4))
	require.Equal(t, 0, p.InUse())
}

func TestReleaseUnknownRecordIsReported(t *testing.T) {
	p := New(2)
	foreign := &event.Record{}
	err := p.Release(foreign)
	require.Error(t, err)
}

func TestReleaseTwiceIsReported(t *testing.T) {
	p := New(1)
	r, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(r))
	err = p.Release(r)
	require.Error(t, err)
}

func TestDestroyClearsInUseRecords(t *testing.T) {
	p := New(2)
	r1, err := p.Acquire()
	require.NoError(t, err)
	r2, err := p.Acquire()
	require.NoError(t, err)
	r1.ProcessName = "nginx"
	r2.PID = 1234
	p.Destroy()
	require.Nil(t, p.slots)
	require.Equal(t, "", r1.ProcessName)
	require.Equal(t, uint32(0), r2.PID)
}
