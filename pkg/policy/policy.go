package policy

// Action names one guarded operation. Route-level role gates (owner-only or
// contributor-only endpoints) reject foreign roles before any of this runs,
// matching the original service where the role filter preceded the handler;
// Decide still re-checks roles so it is safe to call without that gate.
type Action int

const (
	// Project-scoped actions.
	ActionViewProject Action = iota
	ActionCreateProject
	ActionUpdateProject
	ActionDeleteProject
	ActionListProjectTickets
	ActionListProjectMembers
	ActionRemoveProjectMember
	ActionJoinProject
	ActionLeaveProject
	ActionCreateTicket

	// Ticket-scoped actions.
	ActionViewTicket
	ActionUpdateTicket
	ActionDeleteTicket
	ActionAcceptTicket
	ActionSubmitObservation
	ActionListObservations
	ActionSendMessage
	ActionListMessages

	// Account-management actions.
	ActionManageAccounts
	ActionSetOwnerPassword
)

// DenyCode classifies a denial for status-code mapping by the transport
// layer: NotFound -> 404, Forbidden -> 403, Conflict -> 409/400.
type DenyCode int

const (
	DenyNotFound DenyCode = iota
	DenyForbidden
	DenyConflict
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed bool
	Code    DenyCode
	Reason  string
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision with a classification and reason.
func Deny(code DenyCode, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}

// Snapshot carries the per-request facts a decision depends on. Handlers
// populate it from the store inside the request's transaction boundary and
// pass it in; the zero value means "nothing exists".
//
// For ticket-scoped actions the project fields describe the ticket's parent
// project, and IsMember/HasAccepted refer to the acting identity.
type Snapshot struct {
	ProjectExists bool
	ProjectOwner  string

	TicketExists bool

	IsMember    bool
	HasAccepted bool

	// Target fields describe the account an operation acts on (member
	// removal, owner password change).
	TargetExists   bool
	TargetIsMember bool
	TargetLogin    string
}

// Decide evaluates one action against the snapshot. Rules are checked in a
// fixed precedence: resource existence first, then role and
// ownership/membership, then state conflicts. Referencing an absent resource
// therefore yields NotFound even for callers who would also be forbidden,
// which is the behavior the rest of the system has always exposed.
func Decide(id Identity, action Action, snap Snapshot) Decision {
	switch action {
	case ActionCreateProject:
		if !id.IsOwner() {
			return Deny(DenyForbidden, "only owners create projects")
		}
		return Allow()

	case ActionViewProject, ActionUpdateProject, ActionDeleteProject, ActionListProjectMembers:
		if !snap.ProjectExists {
			return Deny(DenyNotFound, "project not found")
		}
		return requireProjectOwner(id, snap)

	case ActionCreateTicket:
		if !snap.ProjectExists {
			return Deny(DenyNotFound, "project not found")
		}
		return requireProjectOwner(id, snap)

	case ActionListProjectTickets:
		if !snap.ProjectExists {
			return Deny(DenyNotFound, "project not found")
		}
		return requireOwnerOrMember(id, snap)

	case ActionRemoveProjectMember:
		if !snap.ProjectExists || !snap.TargetExists {
			return Deny(DenyNotFound, "project or account not found")
		}
		if d := requireProjectOwner(id, snap); !d.Allowed {
			return d
		}
		if !snap.TargetIsMember {
			return Deny(DenyConflict, "account is not a member of the project")
		}
		return Allow()

	case ActionJoinProject:
		if !snap.ProjectExists {
			return Deny(DenyNotFound, "project not found")
		}
		if !id.IsContributor() {
			return Deny(DenyForbidden, "only contributors join projects")
		}
		if snap.IsMember {
			return Deny(DenyConflict, "already a member of the project")
		}
		return Allow()

	case ActionLeaveProject:
		if !snap.ProjectExists {
			return Deny(DenyNotFound, "project not found")
		}
		if !id.IsContributor() {
			return Deny(DenyForbidden, "only contributors hold memberships")
		}
		if !snap.IsMember {
			return Deny(DenyConflict, "not a member of the project")
		}
		return Allow()

	case ActionViewTicket, ActionListObservations, ActionSendMessage, ActionListMessages:
		if !snap.TicketExists {
			return Deny(DenyNotFound, "ticket not found")
		}
		return requireOwnerOrMember(id, snap)

	case ActionUpdateTicket, ActionDeleteTicket:
		if !snap.TicketExists {
			return Deny(DenyNotFound, "ticket not found")
		}
		return requireProjectOwner(id, snap)

	case ActionAcceptTicket:
		if !snap.TicketExists {
			return Deny(DenyNotFound, "ticket not found")
		}
		if !id.IsContributor() {
			return Deny(DenyForbidden, "only contributors accept tickets")
		}
		if !snap.IsMember {
			return Deny(DenyForbidden, "not a member of the ticket's project")
		}
		return Allow()

	case ActionSubmitObservation:
		if !snap.TicketExists {
			return Deny(DenyNotFound, "ticket not found")
		}
		if !id.IsContributor() {
			return Deny(DenyForbidden, "only contributors submit observations")
		}
		if !snap.IsMember || !snap.HasAccepted {
			return Deny(DenyForbidden, "ticket not accepted by caller")
		}
		return Allow()

	case ActionManageAccounts:
		if !id.IsOwner() {
			return Deny(DenyForbidden, "owner privileges required")
		}
		return Allow()

	case ActionSetOwnerPassword:
		if !id.IsOwner() {
			return Deny(DenyForbidden, "owner privileges required")
		}
		if id.LoginName != snap.TargetLogin {
			return Deny(DenyForbidden, "owners may only change their own password")
		}
		return Allow()
	}

	return Deny(DenyForbidden, "unknown action")
}

// requireProjectOwner allows only the owner recorded on the project.
// Any other caller, including other authenticated owners, is forbidden.
func requireProjectOwner(id Identity, snap Snapshot) Decision {
	if !id.IsOwner() {
		return Deny(DenyForbidden, "owner privileges required")
	}
	if snap.ProjectOwner != id.LoginName {
		return Deny(DenyForbidden, "not the owner of this project")
	}
	return Allow()
}

// requireOwnerOrMember allows the recorded project owner, or a contributor
// enrolled in the project.
func requireOwnerOrMember(id Identity, snap Snapshot) Decision {
	if id.IsOwner() {
		if snap.ProjectOwner != id.LoginName {
			return Deny(DenyForbidden, "not the owner of this project")
		}
		return Allow()
	}
	if !snap.IsMember {
		return Deny(DenyForbidden, "not a member of the project")
	}
	return Allow()
}
