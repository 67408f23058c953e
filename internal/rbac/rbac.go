package rbac

import "strings"

type Role string
type Action string

const (
	RoleVisitor   Role = "visitor"
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionPost    Action = "post"
	ActionVote    Action = "vote"
	ActionReport  Action = "report"
	ActionExport  Action = "export"
	ActionReview  Action = "review"
	ActionReindex Action = "reindex"
)

// Can reports whether role may perform action. Posting, replying and voting
// stay open to visitors.
func Can(role Role, action Action) bool {
	switch action {
	case ActionRead, ActionPost, ActionVote, ActionReport:
		return true
	case ActionExport, ActionReview:
		return role == RoleModerator || role == RoleAdmin
	case ActionReindex:
		return role == RoleAdmin
	default:
		return false
	}
}

// Normalize maps a free-text role label onto a policy role. Labels the
// policy does not know are treated as members.
func Normalize(role string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case "":
		return RoleVisitor
	case RoleVisitor:
		return RoleVisitor
	case RoleModerator:
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}
