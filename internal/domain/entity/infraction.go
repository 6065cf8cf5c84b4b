package entity

// InfractionResult is the account-standing service's answer to a reported
// censorship. The counters themselves live in that service.
type InfractionResult struct {
	Accepted        bool `json:"accepted"`
	BannedFromChat  bool `json:"is_chat_banned"`
	InfractionCount int  `json:"infracciones_chat"`
}
