package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/pkg/errors"
)

func TestRunTransaction_DiscardsWritesOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.CreateOffer(&entity.Offer{ID: "o1", ChatID: "c1", State: entity.OfferStateOffered}))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	_, err = s.Offers().GetByID(ctx, "o1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestRunTransaction_RejectsReadAfterWrite(t *testing.T) {
	s := New()

	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.AppendLog(&entity.StateLog{ID: "l1"}); err != nil {
			return err
		}
		_, err := tx.GetOffer("o1")
		return err
	})
	assert.True(t, errors.Is(err, errors.CodeInternal))
}

func TestOfferStore_ListExpired(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		for i, exp := range []time.Duration{-2 * time.Hour, -time.Hour, time.Hour} {
			o := &entity.Offer{
				ID:        fmt.Sprintf("o%d", i),
				ChatID:    "c1",
				State:     entity.OfferStateOffered,
				ExpiresAt: now.Add(exp),
			}
			if err := tx.CreateOffer(o); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	expired, err := s.Offers().ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "o0", expired[0].ID)

	limited, err := s.Offers().ListExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestChatStore_ApplyCensorshipPrecondition(t *testing.T) {
	s := New()
	ctx := context.Background()

	read := s.Chats().PutMessage(entity.Message{ID: "m1", ChatID: "c1", SenderID: "u1", Text: "011-1234-5678"})
	s.Chats().PutMessage(entity.Message{ID: "m1", ChatID: "c1", SenderID: "u1", Text: "edited"})

	err := s.Chats().ApplyCensorship(ctx, &read, entity.Censorship{Text: "x", Reasons: entity.CensorReasons{Phone: true}})
	assert.True(t, errors.Is(err, errors.CodeConflict))

	fresh, err := s.Chats().GetMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	require.NoError(t, s.Chats().ApplyCensorship(ctx, fresh, entity.Censorship{Text: "x", Reasons: entity.CensorReasons{Phone: true}}))

	got, err := s.Chats().GetMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.True(t, got.Censored)
	assert.Equal(t, "x", got.Text)
	assert.Equal(t, "u1", got.SenderID)
}
