package domain

import (
	dErrors "corretaje/pkg/domain-errors"
)

// Role is an operator's access role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleBroker    Role = "broker"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts the three operator roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "role must be one of admin, broker, assistant").WithField("role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleBroker, RoleAssistant:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated operator behind a request.
type Principal struct {
	OperatorID   OperatorID
	Email        string
	Role         Role
	IsSuperuser  bool
	BrokerNumber *BrokerNumber
}

// IsBroker reports whether broker scoping applies to this principal.
func (p *Principal) IsBroker() bool {
	return p != nil && p.Role == RoleBroker
}
