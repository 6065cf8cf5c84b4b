package entity

import "time"

const (
	EntityOffer       = "offer"
	EntityJob         = "job"
	EntityTransaction = "transaction"

	SystemActor = "system"
)

// StateLog is the append-only audit record written with every transition.
type StateLog struct {
	ID         string    `json:"id" firestore:"id"`
	EntityType string    `json:"entity_type" firestore:"entityType"`
	EntityID   string    `json:"entity_id" firestore:"entityId"`
	FromState  string    `json:"from_state,omitempty" firestore:"fromState,omitempty"`
	ToState    string    `json:"to_state" firestore:"toState"`
	ActorID    string    `json:"actor_id" firestore:"actorId"`
	Notes      string    `json:"notes,omitempty" firestore:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
}
