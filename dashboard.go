package goSala

import "context"

const dashboardPath = "/api/dashboard/"

// DashboardStats returns the collection, loan and member counters.
func (c *Client) DashboardStats(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := c.GetJSON(ctx, dashboardPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
