package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kaysia/kasa/internal/cron"
	"github.com/kaysia/kasa/internal/cron/crontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(discardLogger(), nil)
	require.NoError(t, s.RegisterJob(&crontest.MockJob{NameVal: "test", ScheduleVal: "* * * * *"}))
	assert.Error(t, s.RegisterJob(&crontest.MockJob{NameVal: "test", ScheduleVal: "* * * * *"}))
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(discardLogger(), nil)
	require.NoError(t, s.RegisterJob(&crontest.MockJob{NameVal: "bad", ScheduleVal: "invalid"}))

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	s := cron.NewScheduler(nil, loc)
	require.NoError(t, s.RegisterJob(&crontest.MockJob{NameVal: "daily", ScheduleVal: "0 9 * * *"}))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return !s.Next()["daily"].IsZero() }, time.Second, 5*time.Millisecond)
	next := s.Next()["daily"].In(loc)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())

	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_NextBeforeStart(t *testing.T) {
	t.Parallel()
	s := cron.NewScheduler(discardLogger(), nil)
	require.NoError(t, s.RegisterJob(&crontest.MockJob{NameVal: "a", ScheduleVal: "* * * * *"}))
	assert.Empty(t, s.Next())
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	job := &crontest.MockJob{NameVal: "j", ScheduleVal: "0 0 1 1 *", RunFunc: func(context.Context) error { return boom }}
	s := cron.NewScheduler(discardLogger(), nil)
	require.NoError(t, s.RegisterJob(job))

	assert.ErrorIs(t, s.RunNow(context.Background(), "j"), boom)
	assert.Equal(t, 1, job.CallCount())
	assert.ErrorContains(t, s.RunNow(context.Background(), "missing"), "unknown job")
}

func TestScheduler_RunNow_NoOverlap(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	job := &crontest.MockJob{NameVal: "slow", ScheduleVal: "0 0 1 1 *", RunFunc: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}
	s := cron.NewScheduler(discardLogger(), nil)
	require.NoError(t, s.RegisterJob(job))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.RunNow(context.Background(), "slow"))
	}()
	<-started

	assert.ErrorContains(t, s.RunNow(context.Background(), "slow"), "already running")
	close(release)
	wg.Wait()
	assert.Equal(t, 1, job.CallCount())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()
	assert.NoError(t, cron.NewScheduler(discardLogger(), nil).Stop(context.Background()))
}
