package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronRunsJobWithStartContext(t *testing.T) {
	cr := NewCron(time.UTC)
	var runs atomic.Int32
	type key struct{}

	_, err := cr.AddWithCtx("@every 1s", func(ctx context.Context) {
		if ctx.Value(key{}) == "beacon" {
			runs.Add(1)
		}
	})
	require.NoError(t, err)
	require.Len(t, cr.Entries(), 1)

	cr.Start(context.WithValue(context.Background(), key{}, "beacon"))
	defer cr.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestCronRejectsBadSpec(t *testing.T) {
	_, err := NewCron(nil).Add("every tuesday-ish", FuncJob(func(context.Context) {}))
	assert.Error(t, err)
}

func TestCronRecoversPanics(t *testing.T) {
	cr := NewCron(time.UTC)
	var after atomic.Int32
	_, err := cr.Add("@every 1s", FuncJob(func(context.Context) {
		after.Add(1)
		panic("boom")
	}))
	require.NoError(t, err)
	cr.Start(context.Background())
	defer cr.Stop()

	assert.Eventually(t, func() bool { return after.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}
