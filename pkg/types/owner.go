package types

import (
	"strings"

	"github.com/google/uuid"
)

// Owner identifies who a cart or order belongs to: an authenticated user or,
// failing that, an anonymous session.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserOwner builds an Owner for an authenticated user.
func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

// SessionOwner builds an Owner for an anonymous session.
func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: strings.TrimSpace(sessionID)}
}

// IsZero reports whether no identity is present.
func (o Owner) IsZero() bool {
	return (o.UserID == nil || *o.UserID == uuid.Nil) && strings.TrimSpace(o.SessionID) == ""
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool {
	return o.UserID != nil && *o.UserID != uuid.Nil
}

// SessionPtr returns the session id as a nullable column value. Users never
// carry a session id so a cart cannot be claimed by both.
func (o Owner) SessionPtr() *string {
	if o.IsUser() || o.SessionID == "" {
		return nil
	}
	s := o.SessionID
	return &s
}

// UserPtr returns the user id as a nullable column value.
func (o Owner) UserPtr() *uuid.UUID {
	if !o.IsUser() {
		return nil
	}
	id := *o.UserID
	return &id
}

// Reference renders the owner as the actor string stored on history rows.
func (o Owner) Reference() string {
	switch {
	case o.IsUser():
		return "user:" + o.UserID.String()
	case o.SessionID != "":
		return "session:" + o.SessionID
	default:
		return "system"
	}
}
