package client

import (
	"context"
	"net/http"
)

// GetStatus fetches a point-in-time bot status snapshot.
func (c *Client) GetStatus(ctx context.Context) (*BotStatus, error) {
	var status BotStatus

	err := c.do(ctx, request{
		op:     "get status",
		method: http.MethodGet,
		path:   "/api/status",
		out:    &status,
	})
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// GetLogs fetches the server's retained log history, oldest first.
func (c *Client) GetLogs(ctx context.Context) ([]LogEntry, error) {
	var logs []LogEntry

	err := c.do(ctx, request{
		op:     "get logs",
		method: http.MethodGet,
		path:   "/api/logs",
		out:    &logs,
	})
	if err != nil {
		return nil, err
	}

	for i := range logs {
		logs[i].Level = logs[i].Level.Normalize()
	}

	return logs, nil
}
