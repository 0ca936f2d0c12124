package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type fakeLock struct {
	held    map[string]bool
	name    string
	release int
}

func fakeLocks(held map[string]bool) LockFactory {
	return func(name string) (Lock, error) {
		return &fakeLock{held: held, name: name}, nil
	}
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held[f.name] {
		return false, nil
	}
	f.held[f.name] = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.release++
	delete(f.held, f.name)
	return nil
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}

	svc, err := NewService(ServiceParams{
		Logger:  logger.Nop(),
		Jobs:    []Job{ok, nil, bad},
		Locks:   fakeLocks(map[string]bool{}),
		Metrics: m,
	})
	require.NoError(t, err)
	require.Len(t, svc.Jobs(), 2)

	svc.RunOnce(context.Background())
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, bad.runs)

	// one ok series and one error series
	count, err := testutil.GatherAndCount(reg, "bistro_cron_job_runs_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRunOnceSkipsLockedJob(t *testing.T) {
	held := map[string]bool{"busy": true}
	busy := &testJob{name: "busy"}
	free := &testJob{name: "free"}

	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Jobs: []Job{busy, free}, Locks: fakeLocks(held)})
	require.NoError(t, err)

	svc.RunOnce(context.Background())
	require.Zero(t, busy.runs)
	require.Equal(t, 1, free.runs)
	require.False(t, held["free"], "lock must be released after the run")
}

func TestRedisLockIsExclusivePerJob(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	ctx := context.Background()

	locks := RedisLocks(client, time.Minute)
	first, err := locks("digest")
	require.NoError(t, err)
	second, err := locks("digest")
	require.NoError(t, err)
	other, err := locks("retention")
	require.NoError(t, err)

	got, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	got, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, got)

	got, err = other.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	// a lock that never acquired must not free the holder's key
	require.NoError(t, second.Release(ctx))
	got, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, got)

	require.NoError(t, first.Release(ctx))
	got, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)
}
