package realtime

// Conn is a live transport connection as seen by the core.
//
// Send must not block: implementations queue the event and return
// ErrSendBufferFull when they cannot. Emits are fire-and-forget, so the core
// only logs Send errors.
type Conn interface {
	ID() string
	Send(ev Outbound) error
	Close() error
}

// anonymousIdentities are transport-supplied identities that mean "not
// identified". Clients that serialise a missing id produce these.
var anonymousIdentities = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
}

// IsAnonymous reports whether userID should be treated as no identity.
func IsAnonymous(userID string) bool {
	_, ok := anonymousIdentities[userID]
	return ok
}
