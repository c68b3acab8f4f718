package domain

import "time"

type PollStatus string

const (
	PollOpen   PollStatus = "open"
	PollClosed PollStatus = "closed"
)

// Poll limits.
const (
	MaxTitleLength = 200
	MaxLabelLength = 200
	MinPollOptions = 2
	MaxPollOptions = 20
	MaxDescription = 4000
)

type Poll struct {
	ID          string
	OwnerID     string
	Title       string
	Description string // sanitised HTML
	MaxChoices  int
	Status      PollStatus
	ClosesAt    *time.Time
	ClosedAt    *time.Time
	CreatedAt   time.Time

	Options []PollOption
	Voters  int // filled by listings
}

// AcceptsVotes reports whether the poll is open and not past its deadline.
func (p *Poll) AcceptsVotes(now time.Time) bool {
	if p.Status != PollOpen {
		return false
	}
	return p.ClosesAt == nil || now.Before(*p.ClosesAt)
}

type PollOption struct {
	ID       string
	PollID   string
	Label    string
	Position int
}

// Vote is one user's ballot on one poll.
type Vote struct {
	ID        string
	PollID    string
	UserID    string
	OptionIDs []string
	CreatedAt time.Time
}

type OptionTally struct {
	OptionID string  `json:"option_id"`
	Label    string  `json:"label"`
	Position int     `json:"position"`
	Votes    int     `json:"votes"`
	Percent  float64 `json:"percent"`
}

type PollResults struct {
	PollID      string        `json:"poll_id"`
	Title       string        `json:"title"`
	Status      PollStatus    `json:"status"`
	TotalVoters int           `json:"total_voters"`
	Options     []OptionTally `json:"options"`
}
