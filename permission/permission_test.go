package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/neowatch/types"
)

var (
	allRoles   = []types.Role{types.RoleUser, types.RoleResearcher, types.RoleAdmin}
	crud       = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	allActions = append(append([]Action{}, crud...), ActionManage)
)

func TestManageImpliesCRUD(t *testing.T) {
	for _, role := range allRoles {
		for _, resource := range Resources() {
			if _, ok := matrix[role][resource][ActionManage]; !ok {
				continue
			}
			for _, action := range crud {
				assert.True(t, HasPermission(role, resource, action), "%s %s %s", role, resource, action)
			}
		}
	}
}

func TestAbsentRole(t *testing.T) {
	for _, resource := range Resources() {
		for _, action := range allActions {
			assert.False(t, HasPermission(types.RoleNone, resource, action))
			assert.False(t, HasPermission(types.ParseRole(""), resource, action))
		}
	}
	assert.False(t, HasAnyPermission(types.RoleNone, ResourceChat, allActions...))
}

func TestMissingEntry(t *testing.T) {
	assert.False(t, HasPermission(types.RoleUser, ResourceUser, ActionRead))
	assert.False(t, HasPermission(types.RoleAdmin, Resource("unknown"), ActionRead))
	assert.False(t, HasPermission(types.Role(42), ResourceChat, ActionRead))
}

func TestResearcherWatchlist(t *testing.T) {
	role := types.ParseRole("RESEARCHER")
	assert.False(t, HasPermission(role, ResourceWatchlist, ActionManage))
	assert.True(t, HasPermission(role, ResourceWatchlist, ActionUpdate))
}

func TestHasAnyPermission(t *testing.T) {
	assert.True(t, HasAnyPermission(types.RoleUser, ResourceAlert, ActionUpdate, ActionRead))
	assert.False(t, HasAnyPermission(types.RoleUser, ResourceAlert, ActionUpdate, ActionDelete))
	assert.False(t, HasAnyPermission(types.RoleAdmin, ResourceAlert))
}

func TestIsAtLeast(t *testing.T) {
	for _, role := range allRoles {
		assert.True(t, IsAtLeast(role, role))
	}
	assert.False(t, IsAtLeast(types.RoleUser, types.RoleAdmin))
	assert.True(t, IsAtLeast(types.RoleAdmin, types.RoleUser))
	assert.True(t, IsAtLeast(types.RoleResearcher, types.RoleUser))
	assert.False(t, IsAtLeast(types.RoleNone, types.RoleUser))
	assert.False(t, IsAtLeast(types.RoleNone, types.RoleNone))
}

func TestActions(t *testing.T) {
	assert.Equal(t, []Action{ActionCreate, ActionRead}, Actions(types.RoleResearcher, ResourceReport))
	assert.Equal(t, []Action{ActionManage}, Actions(types.RoleAdmin, ResourceSystem))
	assert.Empty(t, Actions(types.RoleNone, ResourceSystem))
}
