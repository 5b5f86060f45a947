package rbac

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

const (
	// ActionRead covers job status and stored records.
	ActionRead Action = "read"
	// ActionSync covers creating sync jobs.
	ActionSync  Action = "sync"
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleOperator:
		return action == ActionRead || action == ActionSync
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
