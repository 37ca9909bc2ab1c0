package auth

import (
	"net/http"
	"strings"
)

// Policy determines allowed roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// AllowedRoles resolves the roles allowed to perform the request.
// The bool result is false when the path carries no policy at all.
func (p Policy) AllowedRoles(r *http.Request) ([]Role, bool) {
	if r == nil {
		return nil, false
	}
	path := r.URL.Path
	method := r.Method
	readOnly := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	anyRole := []Role{
		RoleRecteur, RoleAdminSI, RoleDoyen, RoleValidatorAcad,
		RoleOperatorFinance, RoleOperatorScola, RoleScolarite,
		RoleTeacher, RoleStudent,
	}
	staff := []Role{
		RoleRecteur, RoleAdminSI, RoleDoyen, RoleValidatorAcad,
		RoleOperatorFinance, RoleOperatorScola, RoleScolarite,
	}

	switch {
	case strings.HasPrefix(path, "/api/v1/scholarships"):
		if readOnly {
			return staffPlusSelf(), true
		}
		if strings.HasSuffix(path, "/suspend") || strings.HasSuffix(path, "/reinstate") || strings.HasSuffix(path, "/terminate") {
			return []Role{RoleRecteur, RoleAdminSI}, true
		}
		return []Role{RoleScolarite, RoleRecteur, RoleAdminSI}, true
	case strings.HasPrefix(path, "/api/v1/deferrals"):
		if readOnly {
			return staffPlusSelf(), true
		}
		if strings.HasSuffix(path, "/honor") {
			return []Role{RoleOperatorFinance, RoleScolarite, RoleOperatorScola, RoleAdminSI}, true
		}
		return []Role{RoleOperatorFinance, RoleRecteur, RoleAdminSI}, true
	case strings.HasPrefix(path, "/api/v1/grades"):
		if readOnly {
			return anyRole, true
		}
		return []Role{RoleTeacher, RoleValidatorAcad, RoleAdminSI}, true
	case strings.HasPrefix(path, "/api/v1/students/") && strings.Contains(path, "/schedule"):
		return staffPlusSelf(), true
	case strings.HasPrefix(path, "/api/v1/students/") && strings.Contains(path, "/balance"):
		if readOnly {
			return staffPlusSelf(), true
		}
		return []Role{RoleOperatorFinance, RoleAdminSI}, true
	case strings.HasPrefix(path, "/api/v1/invoices") || strings.HasPrefix(path, "/api/v1/payments"):
		if readOnly {
			return staff, true
		}
		return []Role{RoleOperatorFinance, RoleAdminSI}, true
	}

	if strings.HasPrefix(path, "/api/") {
		if readOnly {
			return anyRole, true
		}
		return staff, true
	}
	return nil, false
}

func staffPlusSelf() []Role {
	return []Role{
		RoleRecteur, RoleAdminSI, RoleDoyen, RoleValidatorAcad,
		RoleOperatorFinance, RoleOperatorScola, RoleScolarite,
		RoleStudent,
	}
}

// RoleAllowed reports membership of role in allowed.
func RoleAllowed(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
