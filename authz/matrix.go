// Package authz decides what a role may do (the permission matrix) and
// which cases a user may see (ownership-based visibility). Both checks
// are pure functions over static data so they can be audited and tested
// in isolation from the case lifecycle.
package authz

import "fraudflow/auth"

// Resource identifies the kind of record an action targets.
type Resource string

const (
	ResourceCase       Resource = "case"
	ResourceUser       Resource = "user"
	ResourceEscalation Resource = "escalation"
)

// Action is an operation attempted against a resource.
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionEscalate Action = "escalate"
	ActionAssign   Action = "assign"
)

// matrix enumerates every permission granted to a non-admin role.
// Admin bypasses the table entirely; every pair absent from a row is
// denied. Keep this table in sync with the escalation-history gate in
// the fraudcase service, which is stricter than the viewer row here.
var matrix = map[auth.Role]map[Resource][]Action{
	auth.RoleInvestigator: {
		ResourceCase:       {ActionCreate, ActionRead, ActionUpdate, ActionEscalate, ActionAssign},
		ResourceUser:       {ActionRead},
		ResourceEscalation: {ActionCreate, ActionRead},
	},
	auth.RoleAnalyst: {
		ResourceCase:       {ActionRead, ActionUpdate, ActionEscalate},
		ResourceUser:       {ActionRead},
		ResourceEscalation: {ActionCreate, ActionRead},
	},
	auth.RoleViewer: {
		ResourceCase:       {ActionRead},
		ResourceUser:       {ActionRead},
		ResourceEscalation: {ActionRead},
	},
}

// Allowed reports whether role may perform action on resource,
// independent of ownership. Unknown roles, resources, or actions are
// denied; admin is always allowed.
func Allowed(role auth.Role, resource Resource, action Action) bool {
	if role == auth.RoleAdmin {
		return true
	}

	actions, ok := matrix[role][resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
