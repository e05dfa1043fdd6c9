package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	before []time.Time
	n      int64
	err    error
}

func (f *fakePurger) PurgeInactiveOverrides(ctx context.Context, before time.Time) (int64, error) {
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected deadline")
	}
	f.before = append(f.before, before)
	return f.n, f.err
}

func TestRunPurge_UsesRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(zerolog.New(&buf))
	now := time.Date(2024, 6, 30, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	p := &fakePurger{n: 7}
	n := s.RunPurge(context.Background(), p, PurgeConfig{Schedule: "@daily", Retention: 90 * 24 * time.Hour})

	assert.Equal(t, int64(7), n)
	require.Len(t, p.before, 1)
	assert.Equal(t, now.AddDate(0, 0, -90), p.before[0])
	assert.Contains(t, buf.String(), `"purged":7`)
}

func TestRunPurge_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(zerolog.New(&buf))
	n := s.RunPurge(context.Background(), &fakePurger{err: errors.New("db down")}, PurgeConfig{Retention: time.Hour})
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), "db down")
}

func TestAddPurge_Validation(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	assert.Error(t, s.AddPurge(&fakePurger{}, PurgeConfig{Schedule: "@daily"}))
	assert.Error(t, s.AddPurge(&fakePurger{}, PurgeConfig{Schedule: "not a schedule", Retention: time.Hour}))
	assert.NoError(t, s.AddPurge(&fakePurger{}, PurgeConfig{Schedule: "@every 1h", Retention: time.Hour}))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
