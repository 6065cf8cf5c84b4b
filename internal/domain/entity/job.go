package entity

import (
	"time"

	"changas/pkg/errors"
)

type JobState string

const (
	JobStatePending    JobState = "PENDING"
	JobStateInProgress JobState = "IN_PROGRESS"
	JobStateApproved   JobState = "APPROVED"
	JobStateCancelled  JobState = "CANCELLED"
)

type Job struct {
	ID                 string     `json:"id" firestore:"id"`
	OfferID            string     `json:"offer_id" firestore:"offerId"`
	ChatID             string     `json:"chat_id" firestore:"chatId"`
	ClientID           string     `json:"client_id" firestore:"clientId"`
	ProfessionalID     string     `json:"professional_id" firestore:"professionalId"`
	TransactionID      string     `json:"transaction_id" firestore:"transactionId"`
	State              JobState   `json:"state" firestore:"state"`
	CancellationReason string     `json:"cancellation_reason,omitempty" firestore:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt          time.Time  `json:"updated_at" firestore:"updatedAt"`
	StartedAt          *time.Time `json:"started_at,omitempty" firestore:"startedAt,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty" firestore:"finishedAt,omitempty"`
}

func (j *Job) IsTerminal() bool {
	return j.State == JobStateApproved || j.State == JobStateCancelled
}

func (j *Job) Start(now time.Time) error {
	if j.State != JobStatePending {
		return errors.InvalidTransition("job", string(j.State), "start")
	}
	j.State = JobStateInProgress
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Approve completes the job. Funds must already be released.
func (j *Job) Approve(paymentState TransactionState, now time.Time) error {
	if j.State != JobStateInProgress {
		return errors.InvalidTransition("job", string(j.State), "approve")
	}
	if paymentState != TransactionStateReleased {
		return errors.InvalidTransition("job", string(j.State), "approve while transaction is "+string(paymentState))
	}
	j.State = JobStateApproved
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

func (j *Job) Cancel(reason string, now time.Time) error {
	if j.State != JobStatePending && j.State != JobStateInProgress {
		return errors.InvalidTransition("job", string(j.State), "cancel")
	}
	j.State = JobStateCancelled
	j.CancellationReason = reason
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}
