package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/internal/domain/service"
	"changas/internal/infrastructure/metrics"
	"changas/pkg/errors"
	"changas/pkg/logger"
)

type ModerationOutcome string

const (
	OutcomeSkipped    ModerationOutcome = "skipped"
	OutcomeUnchanged  ModerationOutcome = "unchanged"
	OutcomeCensored   ModerationOutcome = "censored"
	OutcomeSuperseded ModerationOutcome = "superseded"
)

// MessageEvent is one create, update or delete of a chat message. Message may
// be nil, in which case the current document is read from the store.
type MessageEvent struct {
	ChatID    string
	MessageID string
	Deleted   bool
	Message   *entity.Message
}

type MessageProcessor interface {
	Process(ctx context.Context, ev MessageEvent) (ModerationOutcome, error)
}

type ModerationUseCase struct {
	censor        *service.MessageCensor
	chatRepo      repository.ChatRepository
	notifier      InfractionNotifier
	publisher     EventPublisher
	notifyTimeout time.Duration

	now     func() time.Time
	pending sync.WaitGroup
}

func NewModerationUseCase(
	censor *service.MessageCensor,
	chatRepo repository.ChatRepository,
	notifier InfractionNotifier,
	publisher EventPublisher,
	notifyTimeout time.Duration,
) *ModerationUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &ModerationUseCase{
		censor:        censor,
		chatRepo:      chatRepo,
		notifier:      notifier,
		publisher:     publisher,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

// Process runs the moderation pipeline on one message event. The only error
// returned is a failed censorship write, which the caller should retry.
// Detector failures leave the message unchanged.
func (uc *ModerationUseCase) Process(ctx context.Context, ev MessageEvent) (ModerationOutcome, error) {
	if ev.Deleted {
		metrics.RecordMessage(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}

	msg := ev.Message
	if msg == nil {
		stored, err := uc.chatRepo.GetMessage(ctx, ev.ChatID, ev.MessageID)
		if err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				metrics.RecordMessage(string(OutcomeSkipped))
				return OutcomeSkipped, nil
			}
			return "", err
		}
		msg = stored
	}
	if msg.ChatID == "" {
		msg.ChatID = ev.ChatID
	}
	if msg.ID == "" {
		msg.ID = ev.MessageID
	}

	if strings.TrimSpace(msg.Text) == "" {
		metrics.RecordMessage(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}

	result, err := uc.censor.Apply(*msg, uc.now().UTC())
	if err != nil {
		logger.Warn("Moderation skipped message %s/%s: %v", msg.ChatID, msg.ID, err)
		metrics.RecordMessage("failed")
		return OutcomeUnchanged, nil
	}
	if !result.Censored {
		metrics.RecordMessage(string(OutcomeUnchanged))
		return OutcomeUnchanged, nil
	}

	if err := uc.chatRepo.ApplyCensorship(ctx, msg, result.Censorship); err != nil {
		switch {
		case errors.Is(err, errors.CodeConflict):
			// A newer version of the message has its own event queued.
			logger.Debug("Message %s/%s changed before censorship, waiting for next event", msg.ChatID, msg.ID)
			metrics.RecordMessage(string(OutcomeSuperseded))
			return OutcomeSuperseded, nil
		case errors.Is(err, errors.CodeNotFound):
			metrics.RecordMessage(string(OutcomeSkipped))
			return OutcomeSkipped, nil
		}
		logger.Error("Failed to persist censorship of message %s/%s: %v", msg.ChatID, msg.ID, err)
		return "", err
	}

	reasons := result.Censorship.Reasons
	metrics.RecordMessage(string(OutcomeCensored))
	metrics.RecordCensorReasons(reasons.Phone, reasons.Email, reasons.Social)
	logger.Info("Censored message %s/%s from %s (%s)", msg.ChatID, msg.ID, msg.SenderID, reasons)

	censored := result.Censorship.ApplyTo(*msg)
	uc.pending.Add(1)
	go func() {
		defer uc.pending.Done()
		uc.afterCensorship(censored)
	}()

	return OutcomeCensored, nil
}

// afterCensorship runs once the rewrite is durable. Nothing here can undo it.
func (uc *ModerationUseCase) afterCensorship(msg entity.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.notifyTimeout)
	defer cancel()

	if chat, err := uc.chatRepo.GetByID(ctx, msg.ChatID); err == nil {
		uc.publisher.PublishToUsers(chat.ParticipantIDs, Event{
			Type:      EventMessageCensored,
			Data:      msg,
			Timestamp: uc.now().UTC(),
		})
	}

	if uc.notifier == nil {
		return
	}

	res, err := uc.notifier.Notify(ctx, msg.SenderID, *msg.CensorReasons)
	if err != nil {
		metrics.RecordNotifier("failed")
		logger.LogTransitionError("message", msg.ChatID+"/"+msg.ID, "notify infraction", err)
		return
	}

	if res.BannedFromChat {
		metrics.RecordNotifier("banned")
		logger.Warn("User %s is now banned from chat after %d infractions", msg.SenderID, res.InfractionCount)
		return
	}
	metrics.RecordNotifier("ok")
}

// Wait blocks until every in-flight notification has finished.
func (uc *ModerationUseCase) Wait() {
	uc.pending.Wait()
}
