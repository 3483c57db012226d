package policy

import "crowdtrack-backend/pkg/models"

// DeriveStatus computes the lifecycle state of a ticket for one viewer from
// stored facts. Status is never persisted: owners always see the open
// baseline, and a contributor's view depends only on their own acceptance
// and observation count.
//
// The transition to processed happens on the first observation. The ticket's
// required-observations target is informational and does not gate it.
func DeriveStatus(viewer Identity, accepted bool, observationCount int) models.TicketStatus {
	if !viewer.IsContributor() {
		return models.StatusOpen
	}
	if !accepted {
		return models.StatusOpen
	}
	if observationCount > 0 {
		return models.StatusProcessed
	}
	return models.StatusAccepted
}
