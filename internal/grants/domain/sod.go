package grants

// SoDGuard rejects grants whose author is also the beneficiary unless
// the actor's role may override the separation of duties.
func SoDGuard(grantedBy, beneficiaryID string, overrideAuthorized bool) error {
	if grantedBy == "" || grantedBy != beneficiaryID {
		return nil
	}
	if overrideAuthorized {
		return nil
	}
	return violation("separation_of_duties", "actor %s cannot grant to themselves", grantedBy)
}
