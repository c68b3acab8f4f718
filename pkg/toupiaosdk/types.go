package toupiaosdk

import "time"

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Poll Types
// ============================================================================

// PollOption is one choice of a poll.
type PollOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// PollSummary describes a poll without its tally.
type PollSummary struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status"`
	MaxChoices  int          `json:"max_choices"`
	Voters      int          `json:"voters"`
	ClosesAt    *time.Time   `json:"closes_at,omitempty"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Options     []PollOption `json:"options,omitempty"`
}

// PollList is one page of polls. NextOffset is zero on the last page.
type PollList struct {
	Polls      []PollSummary `json:"polls"`
	NextOffset int           `json:"next_offset,omitempty"`
}

// OptionTally is the vote count of one option.
type OptionTally struct {
	OptionID string  `json:"option_id"`
	Label    string  `json:"label"`
	Position int     `json:"position"`
	Votes    int     `json:"votes"`
	Percent  float64 `json:"percent"`
}

// PollResults is the tally of a poll. Percentages are relative to the number
// of voters, so they add up to more than 100 on multiple-choice polls.
type PollResults struct {
	PollID      string        `json:"poll_id"`
	Title       string        `json:"title"`
	Status      string        `json:"status"`
	TotalVoters int           `json:"total_voters"`
	Options     []OptionTally `json:"options"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Only /readyz fills Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or "error: ...".
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`

	// Extra holds optional dependencies such as the mail queue.
	Extra map[string]string `json:"extra,omitempty"`
}
