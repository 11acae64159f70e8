package intel

import (
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Record is structured context about an indicator from an external knowledge
// base, or a draft record created for human review.
type Record struct {
	Indicator      string              `json:"indicator"`
	Type           types.IndicatorType `json:"type"`
	Source         string              `json:"source"`
	Classification string              `json:"classification,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	Confidence     int                 `json:"confidence"`
	Reference      string              `json:"reference,omitempty"`
	Draft          bool                `json:"draft,omitempty"`
}

// Enrichment summarises what the enrichment step learned about an analysis.
type Enrichment struct {
	Records        []Record `json:"records,omitempty"`
	SightingsSent  int      `json:"sightings_sent"`
	DraftRecord    *Record  `json:"draft_record,omitempty"`
	IndicatorsSeen int      `json:"indicators_seen"`
}

func (x *Enrichment) Known() bool {
	return x != nil && len(x.Records) > 0
}
