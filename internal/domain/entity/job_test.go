package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changas/pkg/errors"
)

func TestJobTransitions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("start then approve after release", func(t *testing.T) {
		j := &Job{State: JobStatePending}
		require.NoError(t, j.Start(now))
		assert.Equal(t, JobStateInProgress, j.State)
		require.NotNil(t, j.StartedAt)

		require.NoError(t, j.Approve(TransactionStateReleased, now))
		assert.Equal(t, JobStateApproved, j.State)
		assert.True(t, j.IsTerminal())
	})

	t.Run("approve while funds are held fails", func(t *testing.T) {
		for _, s := range []TransactionState{TransactionStatePending, TransactionStatePaid, TransactionStateRefunded} {
			j := &Job{State: JobStateInProgress}
			err := j.Approve(s, now)
			assert.True(t, errors.Is(err, errors.CodeInvalidTransition), "state %s", s)
			assert.Equal(t, JobStateInProgress, j.State)
		}
	})

	t.Run("approve from pending fails", func(t *testing.T) {
		j := &Job{State: JobStatePending}
		assert.True(t, errors.Is(j.Approve(TransactionStateReleased, now), errors.CodeInvalidTransition))
	})

	t.Run("cancel from pending and in progress", func(t *testing.T) {
		for _, s := range []JobState{JobStatePending, JobStateInProgress} {
			j := &Job{State: s}
			require.NoError(t, j.Cancel("no longer needed", now))
			assert.Equal(t, JobStateCancelled, j.State)
			assert.Equal(t, "no longer needed", j.CancellationReason)
		}
	})

	t.Run("terminal jobs reject every transition", func(t *testing.T) {
		for _, s := range []JobState{JobStateApproved, JobStateCancelled} {
			j := &Job{State: s}
			assert.True(t, errors.Is(j.Start(now), errors.CodeInvalidTransition))
			assert.True(t, errors.Is(j.Cancel("", now), errors.CodeInvalidTransition))
			assert.True(t, errors.Is(j.Approve(TransactionStateReleased, now), errors.CodeInvalidTransition))
		}
	})
}
