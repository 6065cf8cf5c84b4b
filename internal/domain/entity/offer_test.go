package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changas/pkg/errors"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func validOfferParams() NewOfferParams {
	return NewOfferParams{
		ID:             "offer-1",
		ChatID:         "chat-1",
		ProfessionalID: "pro-1",
		ClientID:       "client-1",
		Description:    "Instalación eléctrica completa",
		Price:          5000,
		Currency:       "ARS",
	}
}

func TestNewOffer(t *testing.T) {
	t.Run("defaults expiry to ttl", func(t *testing.T) {
		o, err := NewOffer(validOfferParams(), t0, 72*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, OfferStateOffered, o.State)
		assert.Equal(t, t0.Add(72*time.Hour), o.ExpiresAt)
	})

	t.Run("description of exactly 10 characters is accepted", func(t *testing.T) {
		p := validOfferParams()
		p.Description = "abcdefghij"
		_, err := NewOffer(p, t0, time.Hour)
		assert.NoError(t, err)
	})

	t.Run("description of 9 characters is rejected", func(t *testing.T) {
		p := validOfferParams()
		p.Description = "abcdefghi"
		_, err := NewOffer(p, t0, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeValidation))
	})

	t.Run("accented characters count once", func(t *testing.T) {
		p := validOfferParams()
		p.Description = "instalació"
		_, err := NewOffer(p, t0, time.Hour)
		assert.NoError(t, err)
	})

	t.Run("description over 500 characters is rejected", func(t *testing.T) {
		p := validOfferParams()
		p.Description = strings.Repeat("a", 501)
		_, err := NewOffer(p, t0, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeValidation))
	})

	t.Run("non-positive price is rejected", func(t *testing.T) {
		for _, price := range []float64{0, -10} {
			p := validOfferParams()
			p.Price = price
			_, err := NewOffer(p, t0, time.Hour)
			assert.True(t, errors.Is(err, errors.CodeValidation), "price %v", price)
		}
	})

	t.Run("past expiry is rejected", func(t *testing.T) {
		p := validOfferParams()
		p.ExpiresAt = t0.Add(-time.Minute)
		_, err := NewOffer(p, t0, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeValidation))
	})
}

func TestOfferTransitions(t *testing.T) {
	newOffer := func(t *testing.T) *Offer {
		o, err := NewOffer(validOfferParams(), t0, time.Hour)
		require.NoError(t, err)
		return o
	}

	t.Run("accept before expiry", func(t *testing.T) {
		o := newOffer(t)
		require.NoError(t, o.Accept("job-1", t0.Add(30*time.Minute)))
		assert.Equal(t, OfferStateAccepted, o.State)
		assert.Equal(t, "job-1", o.JobID)
		assert.True(t, o.IsTerminal())
	})

	t.Run("accept exactly at expiry is still legal", func(t *testing.T) {
		o := newOffer(t)
		assert.NoError(t, o.Accept("job-1", o.ExpiresAt))
	})

	t.Run("accept after expiry fails", func(t *testing.T) {
		o := newOffer(t)
		err := o.Accept("job-1", t0.Add(2*time.Hour))
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
		assert.Equal(t, OfferStateOffered, o.State)
	})

	t.Run("second accept fails", func(t *testing.T) {
		o := newOffer(t)
		require.NoError(t, o.Accept("job-1", t0))
		err := o.Accept("job-2", t0)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
		assert.Equal(t, "job-1", o.JobID)
	})

	t.Run("reject only from offered", func(t *testing.T) {
		o := newOffer(t)
		require.NoError(t, o.Reject(t0))
		assert.Equal(t, OfferStateRejected, o.State)
		assert.True(t, errors.Is(o.Reject(t0), errors.CodeInvalidTransition))
		assert.True(t, errors.Is(o.Accept("job-1", t0), errors.CodeInvalidTransition))
	})

	t.Run("expire is idempotent", func(t *testing.T) {
		o := newOffer(t)
		later := t0.Add(2 * time.Hour)

		changed, err := o.Expire(later)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, OfferStateExpired, o.State)

		changed, err = o.Expire(later)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("expire before deadline fails", func(t *testing.T) {
		o := newOffer(t)
		_, err := o.Expire(t0)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	})

	t.Run("expire after accept fails", func(t *testing.T) {
		o := newOffer(t)
		require.NoError(t, o.Accept("job-1", t0))
		_, err := o.Expire(t0.Add(2 * time.Hour))
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
		assert.Equal(t, OfferStateAccepted, o.State)
	})
}
