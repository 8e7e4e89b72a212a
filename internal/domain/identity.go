// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
)

const (
	MaxPeerIDLen = 36
	MaxNameLen   = 36
	MaxSlugLen   = 36
)

var (
	ErrNameTooLong = errors.New("name too long")
	ErrNameEmpty   = errors.New("name empty")
	ErrUnknownRole = errors.New("unknown role")
)

// PeerID is the opaque transport address the signaling server assigns to a
// registered connection.
type PeerID string

type Role string

const (
	RoleGuest        Role = "guest"
	RoleReceptionist Role = "receptionist"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGuest, RoleReceptionist:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Counterpart is the role a terminal of role r may call.
func (r Role) Counterpart() Role {
	if r == RoleGuest {
		return RoleReceptionist
	}
	return RoleGuest
}

// Identity is what a terminal is registered as. It never changes while a
// controller is running.
type Identity struct {
	ID          PeerID `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(id PeerID, name string, role Role) (*Identity, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &Identity{ID: id, DisplayName: name, Role: role}, nil
}

func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}
