package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	n   atomic.Int32
	err error
}

func (c *countingSweeper) SweepIdle(context.Context) error {
	c.n.Add(1)
	return c.err
}

func TestScheduler_RunsSweep(t *testing.T) {
	sw := &countingSweeper{}
	s := NewScheduler(sw, "* * * * * *", nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return sw.n.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_BadSpec(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "every five minutes", nil)
	assert.Error(t, s.Start())
}

func TestScheduler_DisabledWithoutSpec(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "", nil)
	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_SweepErrorIsLogged(t *testing.T) {
	sw := &countingSweeper{err: errors.New("redis down")}
	s := NewScheduler(sw, "* * * * * *", nil)
	s.sweep()
	assert.Equal(t, int32(1), sw.n.Load())
}
