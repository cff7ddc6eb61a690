package domain

import "github.com/google/uuid"

// CallerContext carries the actor and request correlation metadata for one
// operation. It is passed explicitly so the wallet subsystem works the same
// from HTTP handlers, schedulers, and background jobs, with no ambient
// per-request state.
type CallerContext struct {
	ActorID   *uuid.UUID
	RequestID string
	IPAddress string
	UserAgent string
}

// SystemCaller returns a caller context for changes not initiated by a user.
func SystemCaller() CallerContext {
	return CallerContext{RequestID: uuid.NewString()}
}

// IsSystem reports whether the change has no human actor.
func (c CallerContext) IsSystem() bool {
	return c.ActorID == nil
}
