package usecase

import (
	"time"

	"github.com/google/uuid"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/internal/infrastructure/metrics"
	"changas/pkg/errors"
	"changas/pkg/logger"
)

func newStateLog(entityType, entityID, from, to, actorID, notes string, now time.Time) *entity.StateLog {
	return &entity.StateLog{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		FromState:  from,
		ToState:    to,
		ActorID:    actorID,
		Notes:      notes,
		CreatedAt:  now,
	}
}

// transitionSet buffers the entity writes and audit logs of one atomic unit
// so that every read in the unit happens before the first write.
type transitionSet struct {
	now    time.Time
	actor  string
	writes []func(tx repository.Tx) error
}

func newTransitionSet(actor string, now time.Time) *transitionSet {
	return &transitionSet{now: now, actor: actor}
}

func (s *transitionSet) add(write func(tx repository.Tx) error, entityType, entityID, from, to, notes string) {
	log := newStateLog(entityType, entityID, from, to, s.actor, notes, s.now)
	s.writes = append(s.writes, write, func(tx repository.Tx) error {
		return tx.AppendLog(log)
	})
}

func (s *transitionSet) apply(tx repository.Tx) error {
	for _, w := range s.writes {
		if err := w(tx); err != nil {
			return err
		}
	}
	return nil
}

// observe records a transition attempt. Rejections are logged at debug level
// since they are ordinary outcomes under concurrent use.
func observe(entityType, action string, err error) {
	metrics.RecordTransition(entityType, action, err)
	if err != nil && errors.Is(err, errors.CodeInvalidTransition) {
		logger.Debug("%s %s rejected: %v", entityType, action, err)
	}
}

func participants(clientID, professionalID string) []string {
	return []string{clientID, professionalID}
}
