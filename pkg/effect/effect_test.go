package effect_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Josephrp/creditnexus-sub000/pkg/effect"
)

func TestGroup_FireAndWait(t *testing.T) {
	var g effect.Group
	var ran atomic.Int32

	for range 5 {
		g.Fire(context.Background(), "count", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	g.Wait()
	assert.EqualValues(t, 5, ran.Load())
}

func TestGroup_FailuresAndPanicsAreContained(t *testing.T) {
	var g effect.Group
	var after atomic.Bool

	g.Fire(context.Background(), "fails", func(context.Context) error { return errors.New("unreachable host") })
	g.Fire(context.Background(), "panics", func(context.Context) error { panic("boom") })
	g.Fire(context.Background(), "ok", func(context.Context) error {
		after.Store(true)
		return nil
	})
	g.Wait()
	assert.True(t, after.Load())
}

func TestGroup_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var g effect.Group
	var sawCancel atomic.Bool
	g.Fire(ctx, "detached", func(ctx context.Context) error {
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})
	g.Wait()
	assert.False(t, sawCancel.Load())
}
