package permission

import "github.com/tcriess/neowatch/types"

// Resource is a gated part of the dashboard.
type Resource string

const (
	ResourceNEO       Resource = "neo"
	ResourceWatchlist Resource = "watchlist"
	ResourceAlert     Resource = "alert"
	ResourceRisk      Resource = "risk"
	ResourceReport    Resource = "report"
	ResourceChat      Resource = "chat"
	ResourceUser      Resource = "user"
	ResourceSystem    Resource = "system"
)

// Action is what a role may do with a resource. ActionManage implies the four CRUD actions.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

type actionSet map[Action]struct{}

func set(actions ...Action) actionSet {
	s := make(actionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// matrix is never written after initialization.
var matrix = map[types.Role]map[Resource]actionSet{
	types.RoleUser: {
		ResourceNEO:       set(ActionRead),
		ResourceWatchlist: set(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceAlert:     set(ActionRead),
		ResourceRisk:      set(ActionRead),
		ResourceChat:      set(ActionCreate, ActionRead),
	},
	types.RoleResearcher: {
		ResourceNEO:       set(ActionRead, ActionUpdate),
		ResourceWatchlist: set(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceAlert:     set(ActionCreate, ActionRead, ActionUpdate),
		ResourceRisk:      set(ActionCreate, ActionRead),
		ResourceReport:    set(ActionCreate, ActionRead),
		ResourceChat:      set(ActionCreate, ActionRead),
	},
	types.RoleAdmin: {
		ResourceNEO:       set(ActionManage),
		ResourceWatchlist: set(ActionManage),
		ResourceAlert:     set(ActionManage),
		ResourceRisk:      set(ActionManage),
		ResourceReport:    set(ActionManage),
		ResourceChat:      set(ActionManage),
		ResourceUser:      set(ActionManage),
		ResourceSystem:    set(ActionManage),
	},
}

// Resources returns every resource the matrix knows, in declaration order.
func Resources() []Resource {
	return []Resource{
		ResourceNEO, ResourceWatchlist, ResourceAlert, ResourceRisk,
		ResourceReport, ResourceChat, ResourceUser, ResourceSystem,
	}
}
