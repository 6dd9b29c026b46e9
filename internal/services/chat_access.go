package services

import "github.com/cesar731/portfolio-cars-project-sub000/internal/models"

type ChatRole int

const (
	ChatRoleNone ChatRole = iota
	ChatRoleRequester
	ChatRoleAdvisor
)

func (r ChatRole) String() string {
	switch r {
	case ChatRoleRequester:
		return "requester"
	case ChatRoleAdvisor:
		return "advisor"
	default:
		return "none"
	}
}

// ChatAccess decides whether actorID may chat on the given consultation.
// Access exists only once the consultation has been responded to, and only
// for the requester and the assigned advisor. The decision is recomputed on
// every call against the row the caller just loaded; callers must not reuse
// a consultation read before the last known mutation, since reassignment
// would otherwise leave a revoked participant with access.
func ChatAccess(consultation *models.Consultation, actorID int64) ChatRole {
	if consultation == nil || consultation.Status != models.ConsultationResponded {
		return ChatRoleNone
	}
	if consultation.AdvisorID == nil {
		return ChatRoleNone
	}
	if actorID == consultation.UserID {
		return ChatRoleRequester
	}
	if actorID == *consultation.AdvisorID {
		return ChatRoleAdvisor
	}
	return ChatRoleNone
}
