package tabsync

import (
	auth "github.com/memoria-app/auth"
)

// Kind names the auth state change a message carries.
type Kind string

const (
	KindLogin          Kind = "login"
	KindLogout         Kind = "logout"
	KindProfileUpdated Kind = "profile-updated"
)

// Message is the unit of cross-instance synchronization. Identity is set
// only for profile updates.
type Message struct {
	Kind     Kind           `json:"kind"`
	Identity *auth.Identity `json:"identity,omitempty"`
	Origin   string         `json:"origin,omitempty"`
}

// Bus is the cross-instance channel. Send never delivers back to the
// sending bus.
type Bus interface {
	Send(msg Message)
	Subscribe(fn func(Message)) (unsubscribe func())
	Close() error
}
