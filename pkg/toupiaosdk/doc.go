/*
Package toupiaosdk provides a client for the read-only JSON API of the Toupiao
voting service, and the wire types the service writes.

# Usage

	client := toupiaosdk.NewClient("https://vote.example.com")

	// Check service health
	health, err := client.GetReadiness(ctx)

	// Page through open polls
	list, err := client.ListPolls(ctx, toupiaosdk.ListPollsOptions{Status: "open", Limit: 20})

	// Fetch the tally of one poll
	results, err := client.GetResults(ctx, list.Polls[0].ID)

# Errors

Non-2xx responses are returned as *APIError. Use errors.Is against the
predefined values to branch on the error code:

	if errors.Is(err, toupiaosdk.ErrPollNotFound) {
		// ...
	}
*/
package toupiaosdk
