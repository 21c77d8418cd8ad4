package realtime

import "errors"

var (
	// ErrMalformedEvent wraps every decode or validation failure of an inbound frame.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrAnonymous is returned when an unidentified connection sends an event
	// that needs a sender identity.
	ErrAnonymous = errors.New("connection has no user identity")
	// ErrNotMember is returned when a user addresses a group it does not belong to.
	ErrNotMember = errors.New("not a member of the group")
	// ErrSendBufferFull is returned by a Conn whose outbound queue is saturated.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnClosed is returned by a Conn that has already been closed.
	ErrConnClosed = errors.New("connection closed")
)
