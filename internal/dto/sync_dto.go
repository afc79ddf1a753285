package dto

import "time"

type SyncFailureResponse struct {
	Collection string `json:"collection"`
	Key        string `json:"key,omitempty"`
	Error      string `json:"error"`
}

type SyncResponse struct {
	OK         bool                  `json:"ok"`
	Synced     map[string]int        `json:"synced"`
	Failures   []SyncFailureResponse `json:"failures"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// UserLookupResponse is the admin read-through result. Source is "local" or "mirror".
type UserLookupResponse struct {
	Source  string          `json:"source"`
	Profile ProfileResponse `json:"profile"`
}
