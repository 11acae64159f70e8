package raid

import (
	"fmt"

	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Report summarises one mitigation run.
type Report struct {
	CommunityID        types.CommunityID `json:"community_id"`
	TriggeredBy        types.UserID      `json:"triggered_by"`
	VerificationRaised bool              `json:"verification_raised"`
	Attempted          int               `json:"attempted"`
	Removed            int               `json:"removed"`
	Failed             int               `json:"failed"`
	// Skipped is set when another mitigation for the community is in progress.
	Skipped bool `json:"skipped"`
}

func (x Report) Summary() string {
	if x.Skipped {
		return fmt.Sprintf("Raid mitigation already in progress for community %s", x.CommunityID)
	}
	verification := "verification level unchanged"
	if x.VerificationRaised {
		verification = "verification level raised"
	}
	return fmt.Sprintf("Raid mitigation in community %s: %s, removed %d of %d recent members (%d failed)",
		x.CommunityID, verification, x.Removed, x.Attempted, x.Failed)
}
