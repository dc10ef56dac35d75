package transport

import "time"

// SetTimeout shortens the per-call deadline so tests can exercise it
// without waiting out the production value.
func SetTimeout(c *Client, d time.Duration) { c.timeout = d }
