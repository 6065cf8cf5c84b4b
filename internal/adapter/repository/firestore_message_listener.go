package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"changas/internal/usecase"
	"changas/pkg/logger"
)

type MessageSink interface {
	Submit(ctx context.Context, ev usecase.MessageEvent) error
}

// FirestoreMessageListener turns changes to chats/{chatId}/messages documents
// into moderation events. Each listen covers messages sent since a moving
// start time and is restarted every window, so the watched result set stays
// bounded. On (re)start the first snapshot replays every message inside the
// lookback; the pipeline is idempotent for them.
type FirestoreMessageListener struct {
	client   *firestore.Client
	sink     MessageSink
	lookback time.Duration
	window   time.Duration
	retry    time.Duration
}

func NewFirestoreMessageListener(client *firestore.Client, sink MessageSink, lookback, window time.Duration) *FirestoreMessageListener {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FirestoreMessageListener{
		client:   client,
		sink:     sink,
		lookback: lookback,
		window:   window,
		retry:    5 * time.Second,
	}
}

// Run listens until ctx is cancelled, rotating the query every window and
// reconnecting after stream errors.
func (l *FirestoreMessageListener) Run(ctx context.Context) error {
	since := time.Now().Add(-l.lookback)

	for {
		last, err := l.listen(ctx, since)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil && last.IsZero() {
			// a clean rotation saw every message up to now
			last = time.Now()
		}
		since = nextListenStart(since, last, l.lookback)

		if err == nil {
			logger.Debug("Rotating message listener, next start %s", since.Format(time.RFC3339))
			continue
		}

		logger.Error("Message listener stopped: %v, reconnecting in %s", err, l.retry)
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil
		}
	}
}

// nextListenStart moves the listen start to one lookback before last, the
// newest point already covered. It never moves backwards and stays at prev
// when nothing is known to be covered.
func nextListenStart(prev, last time.Time, lookback time.Duration) time.Time {
	if last.IsZero() {
		return prev
	}
	if next := last.Add(-lookback); next.After(prev) {
		return next
	}
	return prev
}

func (l *FirestoreMessageListener) listen(ctx context.Context, since time.Time) (time.Time, error) {
	windowCtx, cancel := context.WithTimeout(ctx, l.window)
	defer cancel()

	query := l.client.CollectionGroup("messages").Where("sentAt", ">=", since)
	iter := query.Snapshots(windowCtx)
	defer iter.Stop()

	logger.Info("Listening for chat messages sent since %s", since.Format(time.RFC3339))

	var last time.Time
	for {
		snap, err := iter.Next()
		if err != nil {
			switch status.Code(err) {
			case codes.Canceled, codes.DeadlineExceeded:
				return last, nil
			}
			if windowCtx.Err() != nil {
				return last, nil
			}
			return last, err
		}

		for _, change := range snap.Changes {
			ev := usecase.MessageEvent{
				MessageID: change.Doc.Ref.ID,
				ChatID:    change.Doc.Ref.Parent.Parent.ID,
			}

			switch change.Kind {
			case firestore.DocumentRemoved:
				ev.Deleted = true
			default:
				msg, err := MessageFromSnapshot(change.Doc)
				if err != nil {
					logger.Warn("Skipping unreadable message %s/%s: %v", ev.ChatID, ev.MessageID, err)
					continue
				}
				ev.Message = msg
				if msg.SentAt.After(last) {
					last = msg.SentAt
				}
			}

			if err := l.sink.Submit(ctx, ev); err != nil {
				return last, err
			}
		}
	}
}
