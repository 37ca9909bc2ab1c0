package auth

import "strings"

// Scope is the explicit authorization value passed into engine calls.
// It replaces ambient identity metadata: callers resolve the actor and
// active role once at the boundary and hand the engine this value.
type Scope struct {
	ActorID       string
	Role          Role
	TeachingUnits map[string]struct{}
}

// NewScope builds a scope for an actor and role.
func NewScope(actorID string, role Role) Scope {
	return Scope{ActorID: actorID, Role: role}
}

// WithTeachingUnits returns a copy restricted to the given unit codes.
func (s Scope) WithTeachingUnits(ueCodes ...string) Scope {
	units := make(map[string]struct{}, len(ueCodes))
	for _, code := range ueCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			units[code] = struct{}{}
		}
	}
	s.TeachingUnits = units
	return s
}

// CoversUnit reports whether grade capture for the unit is in scope.
// A scope with no unit restriction covers nothing for teachers and
// everything for administrative roles.
func (s Scope) CoversUnit(ueCode string) bool {
	if s.Role != RoleTeacher {
		return s.Role == RoleAdminSI || s.Role == RoleValidatorAcad || s.Role == RoleDoyen
	}
	if len(s.TeachingUnits) == 0 {
		return false
	}
	_, ok := s.TeachingUnits[strings.ToUpper(ueCode)]
	return ok
}

// OverridesSoD reports whether the scope may self-grant.
func (s Scope) OverridesSoD() bool {
	return CanOverrideSoD(s.Role)
}
