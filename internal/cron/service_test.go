package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	available  bool
	acquireErr error
	releaseErr error
	released   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	return f.available, f.acquireErr
}

func (f *fakeLock) Release(context.Context) error {
	f.released++
	return f.releaseErr
}

type testJob struct {
	name  string
	err   error
	calls int
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(context.Context) error {
	j.calls++
	return j.err
}

func newTestCron(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		require.NoError(t, registry.Register(job))
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	lock := &fakeLock{available: true}
	a := &testJob{name: "a"}
	b := &testJob{name: "b"}
	svc := newTestCron(t, lock, a, b)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, lock.released)
}

func TestRunOnceCollectsFailures(t *testing.T) {
	lock := &fakeLock{available: true, releaseErr: errors.New("redis gone")}
	a := &testJob{name: "a", err: errors.New("boom")}
	b := &testJob{name: "b"}
	c := &testJob{name: "c", err: errors.New("bang")}
	svc := newTestCron(t, lock, a, b, c)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, b.calls, "a failing job must not stop the rest")
	assert.Equal(t, 1, c.calls)

	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "a: boom")
	assert.Contains(t, errs[1].Error(), "c: bang")
	assert.Contains(t, errs[2].Error(), "lock release")
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	lock := &fakeLock{available: false}
	job := &testJob{name: "a"}
	svc := newTestCron(t, lock, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.calls)
	assert.Zero(t, lock.released)
}

func TestRunOnceLockError(t *testing.T) {
	lock := &fakeLock{acquireErr: errors.New("dial tcp")}
	job := &testJob{name: "a"}
	svc := newTestCron(t, lock, job)

	require.Error(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.calls)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&testJob{name: "a"}))
	require.Error(t, registry.Register(&testJob{name: "a"}))
	require.Error(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)
}
