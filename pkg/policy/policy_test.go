package policy

import (
	"testing"

	"crowdtrack-backend/pkg/models"
)

var (
	admin  = Identity{LoginName: "admin", Role: models.RoleOwner}
	rival  = Identity{LoginName: "rival", Role: models.RoleOwner}
	worker = Identity{LoginName: "worker", Role: models.RoleContributor}
)

// ownedProject is a snapshot of a project owned by "admin".
func ownedProject() Snapshot {
	return Snapshot{ProjectExists: true, ProjectOwner: "admin"}
}

// ownedTicket is a snapshot of a ticket whose parent project is owned by
// "admin".
func ownedTicket() Snapshot {
	return Snapshot{TicketExists: true, ProjectExists: true, ProjectOwner: "admin"}
}

func TestDecide_ExistenceCheckedBeforePermission(t *testing.T) {
	// A missing resource is NotFound even for callers who would also be
	// forbidden on other grounds.
	tests := []struct {
		name   string
		id     Identity
		action Action
		snap   Snapshot
	}{
		{"delete missing project as foreign owner", rival, ActionDeleteProject, Snapshot{}},
		{"view missing ticket as non-member", worker, ActionViewTicket, Snapshot{}},
		{"join missing project", worker, ActionJoinProject, Snapshot{}},
		{"accept missing ticket", worker, ActionAcceptTicket, Snapshot{}},
		{"observe missing ticket without acceptance", worker, ActionSubmitObservation, Snapshot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.id, tt.action, tt.snap)
			if d.Allowed {
				t.Fatal("expected deny, got allow")
			}
			if d.Code != DenyNotFound {
				t.Errorf("Code = %v, want DenyNotFound", d.Code)
			}
		})
	}
}

func TestDecide_OwnerScopedActions(t *testing.T) {
	actions := []Action{
		ActionViewProject, ActionUpdateProject, ActionDeleteProject,
		ActionListProjectMembers, ActionCreateTicket,
	}
	for _, action := range actions {
		if d := Decide(admin, action, ownedProject()); !d.Allowed {
			t.Errorf("action %d: recorded owner denied: %s", action, d.Reason)
		}
		if d := Decide(rival, action, ownedProject()); d.Allowed || d.Code != DenyForbidden {
			t.Errorf("action %d: foreign owner not forbidden", action)
		}
		if d := Decide(worker, action, ownedProject()); d.Allowed || d.Code != DenyForbidden {
			t.Errorf("action %d: contributor not forbidden", action)
		}
	}
}

func TestDecide_TicketScopedOwnerActions(t *testing.T) {
	for _, action := range []Action{ActionUpdateTicket, ActionDeleteTicket} {
		if d := Decide(admin, action, ownedTicket()); !d.Allowed {
			t.Errorf("action %d: recorded owner denied: %s", action, d.Reason)
		}
		if d := Decide(rival, action, ownedTicket()); d.Allowed {
			t.Errorf("action %d: foreign owner allowed", action)
		}
	}
}

func TestDecide_MemberScopedReads(t *testing.T) {
	member := ownedTicket()
	member.IsMember = true

	for _, action := range []Action{ActionViewTicket, ActionListObservations, ActionSendMessage, ActionListMessages} {
		if d := Decide(worker, action, member); !d.Allowed {
			t.Errorf("action %d: member denied: %s", action, d.Reason)
		}
		if d := Decide(worker, action, ownedTicket()); d.Allowed || d.Code != DenyForbidden {
			t.Errorf("action %d: non-member not forbidden", action)
		}
		// The project owner reads the same channel; a foreign owner does not.
		if d := Decide(admin, action, ownedTicket()); !d.Allowed {
			t.Errorf("action %d: project owner denied: %s", action, d.Reason)
		}
		if d := Decide(rival, action, ownedTicket()); d.Allowed {
			t.Errorf("action %d: foreign owner allowed", action)
		}
	}
}

func TestDecide_JoinProject(t *testing.T) {
	if d := Decide(worker, ActionJoinProject, ownedProject()); !d.Allowed {
		t.Fatalf("fresh join denied: %s", d.Reason)
	}

	alreadyMember := ownedProject()
	alreadyMember.IsMember = true
	d := Decide(worker, ActionJoinProject, alreadyMember)
	if d.Allowed {
		t.Fatal("duplicate join allowed")
	}
	if d.Code != DenyConflict {
		t.Errorf("duplicate join Code = %v, want DenyConflict", d.Code)
	}

	if d := Decide(admin, ActionJoinProject, ownedProject()); d.Allowed || d.Code != DenyForbidden {
		t.Error("owner joining a project not forbidden")
	}
}

func TestDecide_LeaveProject(t *testing.T) {
	memberSnap := ownedProject()
	memberSnap.IsMember = true
	if d := Decide(worker, ActionLeaveProject, memberSnap); !d.Allowed {
		t.Fatalf("leave denied: %s", d.Reason)
	}
	if d := Decide(worker, ActionLeaveProject, ownedProject()); d.Allowed || d.Code != DenyConflict {
		t.Error("leaving without membership not a conflict")
	}
}

func TestDecide_RemoveProjectMember(t *testing.T) {
	snap := ownedProject()
	snap.TargetExists = true
	snap.TargetIsMember = true
	if d := Decide(admin, ActionRemoveProjectMember, snap); !d.Allowed {
		t.Fatalf("owner removing member denied: %s", d.Reason)
	}

	snap.TargetIsMember = false
	if d := Decide(admin, ActionRemoveProjectMember, snap); d.Allowed || d.Code != DenyConflict {
		t.Error("removing a non-member not a conflict")
	}

	snap.TargetExists = false
	if d := Decide(admin, ActionRemoveProjectMember, snap); d.Allowed || d.Code != DenyNotFound {
		t.Error("removing a missing account not NotFound")
	}
}

func TestDecide_AcceptAndObserve(t *testing.T) {
	member := ownedTicket()
	member.IsMember = true

	if d := Decide(worker, ActionAcceptTicket, member); !d.Allowed {
		t.Fatalf("member accept denied: %s", d.Reason)
	}
	if d := Decide(worker, ActionAcceptTicket, ownedTicket()); d.Allowed || d.Code != DenyForbidden {
		t.Error("non-member accept not forbidden")
	}

	// Observation needs membership AND acceptance.
	if d := Decide(worker, ActionSubmitObservation, member); d.Allowed {
		t.Error("observation without acceptance allowed")
	}
	accepted := member
	accepted.HasAccepted = true
	if d := Decide(worker, ActionSubmitObservation, accepted); !d.Allowed {
		t.Fatalf("observation by acceptor denied: %s", d.Reason)
	}
	if d := Decide(admin, ActionSubmitObservation, accepted); d.Allowed {
		t.Error("owner submitting an observation allowed")
	}
}

func TestDecide_AccountManagement(t *testing.T) {
	if d := Decide(admin, ActionManageAccounts, Snapshot{}); !d.Allowed {
		t.Fatalf("owner managing accounts denied: %s", d.Reason)
	}
	if d := Decide(worker, ActionManageAccounts, Snapshot{}); d.Allowed || d.Code != DenyForbidden {
		t.Error("contributor managing accounts not forbidden")
	}
}

func TestDecide_OwnerPasswordSelfMatch(t *testing.T) {
	self := Snapshot{TargetLogin: "admin"}
	if d := Decide(admin, ActionSetOwnerPassword, self); !d.Allowed {
		t.Fatalf("self password change denied: %s", d.Reason)
	}

	other := Snapshot{TargetLogin: "rival"}
	d := Decide(admin, ActionSetOwnerPassword, other)
	if d.Allowed {
		t.Fatal("password change on another owner allowed")
	}
	if d.Code != DenyForbidden {
		t.Errorf("Code = %v, want DenyForbidden", d.Code)
	}
}
