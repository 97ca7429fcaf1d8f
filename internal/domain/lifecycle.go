package domain

import (
	"fmt"

	"sosnet/pkg/e"
)

type ActorRole string

const (
	RoleCitizen    ActorRole = "citizen"
	RoleDispatcher ActorRole = "dispatcher"
	RoleResponder  ActorRole = "responder"
	RoleAdmin      ActorRole = "admin"
)

func (r ActorRole) Valid() bool {
	switch r {
	case RoleCitizen, RoleDispatcher, RoleResponder, RoleAdmin:
		return true
	}
	return false
}

type transitionKey struct {
	from, to IncidentState
	reopen   bool
}

var transitionRoles = map[transitionKey][]ActorRole{
	{StateReported, StateVerified, false}:   {RoleDispatcher, RoleAdmin},
	{StateVerified, StateInProgress, false}: {RoleResponder, RoleAdmin},
	{StateInProgress, StateResolved, false}: {RoleResponder, RoleDispatcher, RoleAdmin},
	{StateResolved, StateClosed, false}:     {RoleDispatcher, RoleAdmin},

	// false alarms
	{StateReported, StateClosed, false}:   {RoleDispatcher, RoleAdmin},
	{StateVerified, StateClosed, false}:   {RoleDispatcher, RoleAdmin},
	{StateInProgress, StateClosed, false}: {RoleDispatcher, RoleAdmin},

	{StateResolved, StateVerified, true}: {RoleDispatcher, RoleAdmin},
	{StateClosed, StateVerified, true}:   {RoleDispatcher, RoleAdmin},
}

// CheckTransition reports whether role may move an incident from one state to
// another. Reopen must be set for the resolved/closed -> verified moves and is
// rejected everywhere else.
func CheckTransition(from, to IncidentState, role ActorRole, reopen bool) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown target state %q", e.ErrInvalidTransition, to)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown actor role %q", e.ErrInvalidTransition, role)
	}
	roles, ok := transitionRoles[transitionKey{from: from, to: to, reopen: reopen}]
	if !ok {
		if reopen {
			return fmt.Errorf("%w: cannot reopen from %s to %s", e.ErrInvalidTransition, from, to)
		}
		return fmt.Errorf("%w: %s -> %s is not allowed", e.ErrInvalidTransition, from, to)
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not move %s -> %s", e.ErrInvalidTransition, role, from, to)
}
