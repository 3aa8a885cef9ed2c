// internal/session/registry.go
package session

import "github.com/linyc/inkgold/internal/protocol"

// binding records what a channel declared itself to be. Slot is only
// meaningful for players.
type binding struct {
	role protocol.Role
	slot int
}

// roleRegistry maps channel ids to declared roles. It is owned by the
// session goroutine and needs no locking.
type roleRegistry struct {
	byChannel map[string]binding
}

func newRoleRegistry() *roleRegistry {
	return &roleRegistry{byChannel: make(map[string]binding)}
}

// bind records a channel's declared role, replacing any prior declaration.
func (r *roleRegistry) bind(channelID string, role protocol.Role, slot int) {
	r.byChannel[channelID] = binding{role: role, slot: slot}
}

// lookup returns the binding for a channel, if it has identified.
func (r *roleRegistry) lookup(channelID string) (binding, bool) {
	b, ok := r.byChannel[channelID]
	return b, ok
}

// drop forgets a channel. The player slot's stale connection id in the
// replicated state is deliberately left alone; rebinding on reconnect is
// last-writer-wins.
func (r *roleRegistry) drop(channelID string) {
	delete(r.byChannel, channelID)
}
