package services

import (
	"sort"
	"sync"

	"chat-engine/models"
)

// Presence maps a user id to its single live connection. It is the source of
// truth for "is this user reachable now" and is kept apart from the durable
// user store on purpose: connection state is ephemeral and process-local.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]*Client)}
}

// SetOnline registers c as the active connection for userID. A later call
// silently supersedes the earlier handle: one active connection per user. A
// handle re-logging in under a different id releases its old id first, so no
// mapping keeps pointing at a connection that no longer speaks for that user.
func (p *Presence) SetOnline(userID string, role models.Role, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev := c.bind(userID, role); prev != "" && prev != userID && p.byUser[prev] == c {
		delete(p.byUser, prev)
	}
	p.byUser[userID] = c
}

// Clear removes the registration owned by exactly this connection. A stale
// disconnect racing a fresh login must not evict the newer handle, so the
// mapping is cleared by handle identity, never by user id alone.
func (p *Presence) Clear(c *Client) {
	userID, _ := c.identity()
	if userID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.byUser[userID]; ok && cur == c {
		delete(p.byUser, userID)
	}
}

func (p *Presence) Lookup(userID string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byUser[userID]
	return c, ok
}

// Online returns the ids of every reachable user, sorted for stable output.
func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.byUser))
	for id := range p.byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnlineAdmins returns the connections of every admin currently reachable.
// Support and Report fan-out reads this set instead of scanning the user
// table for admins.
func (p *Presence) OnlineAdmins() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var admins []*Client
	for _, c := range p.byUser {
		if _, role := c.identity(); role == models.RoleAdmin {
			admins = append(admins, c)
		}
	}
	return admins
}
