package pipeline

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

type countingRunner struct {
	calls atomic.Int32
	opts  atomic.Value
	err   error
}

func (r *countingRunner) Run(_ context.Context, opts Options) (*RunResult, error) {
	r.calls.Add(1)
	r.opts.Store(opts)
	if r.err != nil {
		return nil, r.err
	}
	return &RunResult{}, nil
}

func TestScheduler_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "descriptor", spec: "@daily"},
		{name: "five fields", spec: "*/5 * * * *"},
		{name: "every duration", spec: "@every 1h"},
		{name: "garbage", spec: "not a cron", wantErr: true},
		{name: "empty", spec: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewScheduler(&countingRunner{}, Options{BuildDatamart: true}, discardLogger())
			t.Cleanup(s.Stop)

			err := s.Start(tt.spec)
			if tt.wantErr {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Empty(t, s.Schedule())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec, s.Schedule())
			assert.Len(t, s.cron.Entries(), 1)
		})
	}
}

func TestScheduler_Reload(t *testing.T) {
	t.Parallel()

	s := NewScheduler(&countingRunner{}, Options{}, discardLogger())
	t.Cleanup(s.Stop)
	require.NoError(t, s.Start("@hourly"))

	require.NoError(t, s.Reload("*/10 * * * *"))
	assert.Equal(t, "*/10 * * * *", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1, "old entry should be removed")

	// An invalid spec leaves the current schedule in place.
	require.Error(t, s.Reload("61 * * * *"))
	assert.Equal(t, "*/10 * * * *", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_TickRunsScheduledBuild(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	s := NewScheduler(runner, Options{BuildDatamart: true}, discardLogger())
	t.Cleanup(s.Stop)

	s.tick()
	assert.Equal(t, int32(1), runner.calls.Load())
	opts := runner.opts.Load().(Options)
	assert.True(t, opts.BuildDatamart)
	assert.Equal(t, domain.TriggerScheduled, opts.Trigger)

	// Busy and failing runs are logged, not fatal.
	runner.err = ErrBusy
	assert.NotPanics(t, s.tick)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_Stop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(&countingRunner{}, Options{}, discardLogger())
	require.NoError(t, s.Start("@daily"))
	assert.NotPanics(t, s.Stop)
	assert.Error(t, s.ctx.Err())
}
