package tasks

import "sync"

// ClaimedSet records the artists whose top tracks a run already requested.
//
// Claim is atomic, so two concurrent dispatches of the same artist cannot both win.
type ClaimedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewClaimedSet() *ClaimedSet {
	return &ClaimedSet{ids: make(map[string]struct{})}
}

// Claim marks id and reports whether it was unclaimed.
func (c *ClaimedSet) Claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

func (c *ClaimedSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Reset forgets every claim.
func (c *ClaimedSet) Reset() {
	c.mu.Lock()
	clear(c.ids)
	c.mu.Unlock()
}
