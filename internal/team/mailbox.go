package team

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Mailbox routes messages between known members. Unknown senders and
// recipients are rejected; a broadcast reaches every member except the
// sender.
type Mailbox struct {
	mu      sync.Mutex
	members map[string]bool
	inboxes map[string][]models.TeamMessage
	log     []models.TeamMessage
}

// NewMailbox builds a mailbox for the given member names.
func NewMailbox(members []string) *Mailbox {
	known := make(map[string]bool, len(members))
	inboxes := make(map[string][]models.TeamMessage, len(members))
	for _, m := range members {
		known[m] = true
		inboxes[m] = nil
	}
	return &Mailbox{members: known, inboxes: inboxes}
}

// Send delivers a direct message.
func (m *Mailbox) Send(from, to, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.members[from] {
		return fmt.Errorf("unknown sender %q", from)
	}
	if !m.members[to] {
		return fmt.Errorf("unknown recipient %q", to)
	}
	msg := models.TeamMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: time.Now(),
	}
	m.inboxes[to] = append(m.inboxes[to], msg)
	m.log = append(m.log, msg)
	return nil
}

// Broadcast delivers a message to every member except the sender.
func (m *Mailbox) Broadcast(from, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.members[from] {
		return fmt.Errorf("unknown sender %q", from)
	}
	msg := models.TeamMessage{
		ID:        uuid.NewString(),
		From:      from,
		Content:   content,
		Broadcast: true,
		Timestamp: time.Now(),
	}
	for member := range m.inboxes {
		if member == from {
			continue
		}
		m.inboxes[member] = append(m.inboxes[member], msg)
	}
	m.log = append(m.log, msg)
	return nil
}

// Drain returns and clears member's inbox.
func (m *Mailbox) Drain(member string) []models.TeamMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.inboxes[member]
	m.inboxes[member] = nil
	return msgs
}

// Log returns every message sent so far.
func (m *Mailbox) Log() []models.TeamMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TeamMessage, len(m.log))
	copy(out, m.log)
	return out
}
