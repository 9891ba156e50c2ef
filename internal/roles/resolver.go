// Package roles derives authorization roles from identity email addresses.
package roles

import (
	"strings"

	"github.com/techsoc/backend/internal/models"
)

// Resolver maps an email to a role. Rules are evaluated in order, first match wins:
// the privileged address is super_admin, a local-part ending in the club suffix
// is admin, everything else is student. Institutional domain checks happen at
// the identity issuer, not here.
type Resolver struct {
	SuperAdminEmail string
	ClubSuffix      string
}

// NewResolver creates a Resolver with normalized settings.
func NewResolver(superAdminEmail, clubSuffix string) Resolver {
	return Resolver{
		SuperAdminEmail: normalize(superAdminEmail),
		ClubSuffix:      normalize(clubSuffix),
	}
}

// Resolve returns the role for email. It is total over any input.
func (r Resolver) Resolve(email string) models.Role {
	e := normalize(email)
	if e == "" {
		return models.RoleStudent
	}
	if r.SuperAdminEmail != "" && e == normalize(r.SuperAdminEmail) {
		return models.RoleSuperAdmin
	}
	suffix := normalize(r.ClubSuffix)
	if suffix != "" && strings.HasSuffix(localPart(e), suffix) {
		return models.RoleAdmin
	}
	return models.RoleStudent
}

// IsStaff reports whether role may operate scanners and admin tooling.
func IsStaff(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}

func localPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
