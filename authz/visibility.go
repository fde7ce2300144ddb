package authz

import "fraudflow/auth"

// Visible reports whether a user may see a case, given the case's
// creator and optional assignee. Admins and investigators see every
// case; analysts and viewers only see cases they created or are
// assigned to. A case that fails this check must read as not-found,
// never as forbidden, so its existence is not leaked.
func Visible(role auth.Role, userID, createdBy string, assignedTo *string) bool {
	switch role {
	case auth.RoleAdmin, auth.RoleInvestigator:
		return true
	case auth.RoleAnalyst, auth.RoleViewer:
		if createdBy == userID {
			return true
		}
		return assignedTo != nil && *assignedTo == userID
	default:
		return false
	}
}
