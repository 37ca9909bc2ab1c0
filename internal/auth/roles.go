package auth

// Role is an active role carried by an authenticated identity.
type Role string

const (
	RoleRecteur         Role = "RECTEUR"
	RoleAdminSI         Role = "ADMIN_SI"
	RoleDoyen           Role = "DOYEN"
	RoleValidatorAcad   Role = "VALIDATOR_ACAD"
	RoleOperatorFinance Role = "OPERATOR_FINANCE"
	RoleOperatorScola   Role = "OPERATOR_SCOLA"
	RoleScolarite       Role = "SCOLARITE"
	RoleTeacher         Role = "USER_TEACHER"
	RoleStudent         Role = "USER_STUDENT"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleRecteur, RoleAdminSI, RoleDoyen, RoleValidatorAcad,
		RoleOperatorFinance, RoleOperatorScola, RoleScolarite,
		RoleTeacher, RoleStudent:
		return Role(value), true
	default:
		return "", false
	}
}

// CanOverrideSoD reports whether the role may grant a benefit to itself.
// Only the rectorate and the system administrator carry that override.
func CanOverrideSoD(role Role) bool {
	return role == RoleRecteur || role == RoleAdminSI
}

// CanSuspendScholarship reports whether the role may suspend, reinstate
// or terminate a scholarship grant.
func CanSuspendScholarship(role Role) bool {
	return role == RoleRecteur || role == RoleAdminSI
}

// CanSettleDeferral reports whether the role may mark a deferral honored.
func CanSettleDeferral(role Role) bool {
	switch role {
	case RoleOperatorFinance, RoleScolarite, RoleOperatorScola, RoleAdminSI:
		return true
	default:
		return false
	}
}

// CanGrantScholarship reports whether the role may create scholarship grants.
func CanGrantScholarship(role Role) bool {
	switch role {
	case RoleScolarite, RoleRecteur, RoleAdminSI:
		return true
	default:
		return false
	}
}

// CanGrantDeferral reports whether the role may create deferral grants.
func CanGrantDeferral(role Role) bool {
	switch role {
	case RoleOperatorFinance, RoleRecteur, RoleAdminSI:
		return true
	default:
		return false
	}
}
