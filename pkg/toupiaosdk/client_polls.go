package toupiaosdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListPollsOptions filters and pages GET /api/v1/polls.
type ListPollsOptions struct {
	Status string // "open" or "" for all polls
	Limit  int
	Offset int
}

func (o ListPollsOptions) query() string {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListPolls returns one page of polls, newest first.
func (c *Client) ListPolls(ctx context.Context, opts ListPollsOptions) (*PollList, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/polls"+opts.query())
	if err != nil {
		return nil, err
	}

	var list PollList
	if err := decodeJSON(resp, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetResults returns the tally of one poll.
func (c *Client) GetResults(ctx context.Context, pollID string) (*PollResults, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/polls/"+url.PathEscape(pollID)+"/results")
	if err != nil {
		return nil, err
	}

	var results PollResults
	if err := decodeJSON(resp, &results, http.StatusOK); err != nil {
		return nil, err
	}
	return &results, nil
}
