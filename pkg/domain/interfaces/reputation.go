package interfaces

import (
	"context"

	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
)

// URLReputation checks URLs against a reputation list. An empty result means
// no URL matched.
type URLReputation interface {
	CheckURLs(ctx context.Context, urls []string) ([]threat.URLMatch, error)
}

// FileReputation looks up a SHA-256 digest. Unknown hashes return an error
// tagged errs.TagNotFound.
type FileReputation interface {
	LookupHash(ctx context.Context, sha256 string) (*threat.FileReport, error)
}

// IntelLookup queries a threat intelligence knowledge base. Unknown indicators
// return an error tagged errs.TagNotFound.
type IntelLookup interface {
	Lookup(ctx context.Context, indicator ioc.Indicator) (*intel.Record, error)
}

// IntelReporter writes sightings and draft records to an intelligence
// platform.
type IntelReporter interface {
	ReportSighting(ctx context.Context, value string, contextID string) error
	CreateRecord(ctx context.Context, signal threat.Signal, contextID string) (*intel.Record, error)
}
