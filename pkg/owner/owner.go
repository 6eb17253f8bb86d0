package owner

import "errors"

// ID is a unique identifier for an owner (tenant) in the system.
// Each owner has its own isolated memory space; no query ever crosses it.
type ID string

// ErrMissingOwnerContext is returned by any operation that requires an
// owner Context when none is present in the context.Context.
var ErrMissingOwnerContext = errors.New("owner context not found in context")

// Context holds information about the owner on whose behalf an
// operation is performed.
type Context struct {
	// OwnerID is mandatory and determines the memory isolation boundary
	OwnerID ID

	// SessionID optionally identifies the conversation session within
	// the owner's space
	SessionID string
}

// NewContext creates a new Context with the specified owner ID and
// optional session ID.
func NewContext(ownerID ID, sessionID string) Context {
	return Context{
		OwnerID:   ownerID,
		SessionID: sessionID,
	}
}
