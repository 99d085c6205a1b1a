// Package contact maintains a per-agent address book of remote DIDs an agent
// has successfully exchanged authenticated requests with.
package contact

import (
	"strings"
	"sync"
	"time"
)

// Contact is the per-agent record of a known remote DID.
type Contact struct {
	RemoteDID       string
	Host            string
	Port            int
	Name            string
	TokenToRemote   string
	TokenFromRemote string
	FirstContact    time.Time
	LastContact     time.Time
	InteractionCount int
}

// Book is a concurrency-safe registry of Contacts owned by a single agent.
type Book struct {
	ownerDID string

	mu       sync.Mutex
	contacts map[string]*Contact
}

// NewBook creates an empty contact book for the given owning agent DID.
func NewBook(ownerDID string) *Book {
	return &Book{ownerDID: ownerDID, contacts: make(map[string]*Contact)}
}

// AddContact registers a new remote DID, or bumps the interaction count of an
// existing one. name defaults to the DID's local id when empty.
func (b *Book) AddContact(did, host string, port int, name string) *Contact {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.contacts[did]; ok {
		existing.LastContact = time.Now().UTC()
		existing.InteractionCount++
		return existing
	}

	if name == "" {
		if idx := strings.LastIndex(did, ":"); idx >= 0 {
			name = did[idx+1:]
		} else {
			name = did
		}
	}

	now := time.Now().UTC()
	c := &Contact{
		RemoteDID:        did,
		Host:             host,
		Port:             port,
		Name:             name,
		FirstContact:     now,
		LastContact:      now,
		InteractionCount: 1,
	}
	b.contacts[did] = c
	return c
}

// UpdateInteraction bumps the last-contact time and interaction count for an
// already-known DID. It is a no-op if the DID has never been added.
func (b *Book) UpdateInteraction(did string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.contacts[did]; ok {
		c.LastContact = time.Now().UTC()
		c.InteractionCount++
	}
}

// SetTokenToRemote records the bearer token this agent presents to did.
func (b *Book) SetTokenToRemote(did, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.contacts[did]; ok {
		c.TokenToRemote = token
	}
}

// SetTokenFromRemote records the bearer token this agent issued to did.
func (b *Book) SetTokenFromRemote(did, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.contacts[did]; ok {
		c.TokenFromRemote = token
	}
}

// GetContact returns the contact for did, if known.
func (b *Book) GetContact(did string) (*Contact, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contacts[did]
	return c, ok
}

// GetContacts returns a snapshot of all known contacts.
func (b *Book) GetContacts() map[string]*Contact {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*Contact, len(b.contacts))
	for did, c := range b.contacts {
		cp := *c
		out[did] = &cp
	}
	return out
}
