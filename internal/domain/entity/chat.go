package entity

import "time"

type Chat struct {
	ID             string    `json:"id" firestore:"-"`
	ParticipantIDs []string  `json:"participant_ids" firestore:"participantIds"`
	ClientID       string    `json:"client_id" firestore:"clientId"`
	ProfessionalID string    `json:"professional_id" firestore:"professionalId"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.ParticipantIDs {
		if p == userID {
			return true
		}
	}
	return false
}
