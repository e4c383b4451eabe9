// Package permission is the only place where the role/resource/action matrix is consulted. All functions are
// pure; a false result means the gated action has to be hidden or disabled.
package permission

import (
	"sort"

	"github.com/tcriess/neowatch/types"
)

// HasPermission is false for an absent role or a (role, resource) pair without entry. Otherwise it is true if
// the entry contains action or ActionManage.
func HasPermission(role types.Role, resource Resource, action Action) bool {
	if !role.Valid() {
		return false
	}
	entry, ok := matrix[role][resource]
	if !ok {
		return false
	}
	if _, ok := entry[action]; ok {
		return true
	}
	_, ok = entry[ActionManage]
	return ok
}

// HasAnyPermission is true if HasPermission holds for at least one of actions.
func HasAnyPermission(role types.Role, resource Resource, actions ...Action) bool {
	for _, action := range actions {
		if HasPermission(role, resource, action) {
			return true
		}
	}
	return false
}

// IsAtLeast compares ranks; it is reflexive and false for an absent role.
func IsAtLeast(role, minRole types.Role) bool {
	if !role.Valid() {
		return false
	}
	return role >= minRole
}

// Actions lists the actions stored for the pair, sorted. ActionManage is returned as itself, not expanded.
func Actions(role types.Role, resource Resource) []Action {
	entry := matrix[role][resource]
	res := make([]Action, 0, len(entry))
	for a := range entry {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
