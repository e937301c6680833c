package newsletter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/internal/newsletter"
)

func TestEditionStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []newsletter.EditionStatus{
		newsletter.StatusDraft,
		newsletter.StatusScheduled,
		newsletter.StatusSending,
		newsletter.StatusSent,
		newsletter.StatusFailed,
	}
	legal := map[[2]newsletter.EditionStatus]bool{
		{newsletter.StatusDraft, newsletter.StatusScheduled}:  true,
		{newsletter.StatusScheduled, newsletter.StatusSending}: true,
		{newsletter.StatusSending, newsletter.StatusSent}:      true,
		{newsletter.StatusSending, newsletter.StatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]newsletter.EditionStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestEditionStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, newsletter.StatusSent.IsTerminal())
	assert.True(t, newsletter.StatusFailed.IsTerminal())
	assert.False(t, newsletter.StatusDraft.IsTerminal())
	assert.False(t, newsletter.StatusScheduled.IsTerminal())
	assert.False(t, newsletter.StatusSending.IsTerminal())
	assert.False(t, newsletter.EditionStatus("archived").Valid())
}

func TestTransition(t *testing.T) {
	t.Parallel()

	require.NoError(t, newsletter.Transition(newsletter.StatusDraft, newsletter.StatusScheduled))

	err := newsletter.Transition(newsletter.StatusSent, newsletter.StatusSending)
	require.ErrorIs(t, err, newsletter.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "sent -> sending")
}

func TestEdition_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("full path to sent", func(t *testing.T) {
		t.Parallel()

		e := &newsletter.Edition{Status: newsletter.StatusDraft}
		require.NoError(t, e.Schedule(now.Add(time.Hour), now))
		assert.Equal(t, newsletter.StatusScheduled, e.Status)
		require.NotNil(t, e.ScheduledFor)
		assert.False(t, e.IsDue(now))
		assert.True(t, e.IsDue(now.Add(time.Hour)))

		require.NoError(t, e.BeginSending(3, now.Add(time.Hour)))
		assert.Equal(t, newsletter.StatusSending, e.Status)
		assert.Equal(t, 3, e.TotalRecipients)
		assert.False(t, e.IsDue(now.Add(2*time.Hour)))

		require.NoError(t, e.MarkSent(now.Add(2*time.Hour)))
		assert.Equal(t, newsletter.StatusSent, e.Status)
		require.NotNil(t, e.SentAt)
		assert.True(t, e.SentAt.Equal(now.Add(2*time.Hour)))
	})

	t.Run("sending can fail", func(t *testing.T) {
		t.Parallel()

		e := &newsletter.Edition{Status: newsletter.StatusSending}
		require.NoError(t, e.MarkFailed(now))
		assert.Equal(t, newsletter.StatusFailed, e.Status)
		assert.Nil(t, e.SentAt)
	})

	t.Run("schedule at now is allowed", func(t *testing.T) {
		t.Parallel()

		e := &newsletter.Edition{Status: newsletter.StatusDraft}
		require.NoError(t, e.Schedule(now, now))
		assert.True(t, e.IsDue(now))
	})

	t.Run("schedule in the past is rejected", func(t *testing.T) {
		t.Parallel()

		e := &newsletter.Edition{Status: newsletter.StatusDraft}
		err := e.Schedule(now.Add(-time.Minute), now)
		require.ErrorIs(t, err, newsletter.ErrScheduleInPast)
		assert.Equal(t, newsletter.StatusDraft, e.Status)
		assert.Nil(t, e.ScheduledFor)
	})

	t.Run("illegal moves leave the edition untouched", func(t *testing.T) {
		t.Parallel()

		e := &newsletter.Edition{Status: newsletter.StatusDraft}
		require.ErrorIs(t, e.BeginSending(5, now), newsletter.ErrInvalidTransition)
		assert.Equal(t, newsletter.StatusDraft, e.Status)
		assert.Zero(t, e.TotalRecipients)

		sent := &newsletter.Edition{Status: newsletter.StatusSent}
		require.ErrorIs(t, sent.MarkFailed(now), newsletter.ErrInvalidTransition)
		require.ErrorIs(t, sent.Schedule(now.Add(time.Hour), now), newsletter.ErrInvalidTransition)
		assert.Equal(t, newsletter.StatusSent, sent.Status)

		failed := &newsletter.Edition{Status: newsletter.StatusFailed}
		require.ErrorIs(t, failed.BeginSending(1, now), newsletter.ErrInvalidTransition)
	})
}

func TestTemplateStyle_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   newsletter.TemplateStyle
		want newsletter.TemplateStyle
	}{
		{newsletter.StyleMorningBrew, newsletter.StyleMorningBrew},
		{newsletter.StyleMinimalist, newsletter.StyleMinimalist},
		{newsletter.StyleBold, newsletter.StyleBold},
		{newsletter.StyleMagazine, newsletter.StyleMagazine},
		{"unknown", newsletter.StyleMorningBrew},
		{"", newsletter.StyleMorningBrew},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize(), "style %q", tt.in)
	}
}
