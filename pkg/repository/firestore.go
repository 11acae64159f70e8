package repository

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Firestore struct {
	db *firestore.Client
	eb *goerr.Builder
}

var _ interfaces.Repository = &Firestore{}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	db, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.T(errs.TagDatabase))
	}

	return &Firestore{
		db: db,
		eb: goerr.NewBuilder(goerr.TV(errs.RepositoryKey, "firestore"), goerr.T(errs.TagDatabase)),
	}, nil
}

func (r *Firestore) Close() error {
	return r.db.Close()
}

const (
	collectionEntities = "entities"
	collectionAlerts   = "alerts"
	collectionOutcomes = "outcomes"
)

// extractCountFromAggregationResult extracts an integer count from a Firestore aggregation result.
// It handles both int64 and *firestorepb.Value types that can be returned by the Firestore client.
func extractCountFromAggregationResult(result firestore.AggregationResult, alias string) (int, error) {
	countVal, ok := result[alias]
	if !ok {
		return 0, goerr.New("count alias not found in aggregation result", goerr.V("alias", alias))
	}

	switch v := countVal.(type) {
	case int64:
		return int(v), nil
	case *firestorepb.Value:
		if v != nil && v.ValueType != nil {
			if _, okType := v.ValueType.(*firestorepb.Value_IntegerValue); okType {
				return int(v.GetIntegerValue()), nil
			}
			return 0, goerr.New("count value is not an integer",
				goerr.V("value_type", fmt.Sprintf("%T", v.ValueType)), goerr.V("alias", alias))
		}
		return 0, goerr.New("count value is nil", goerr.V("alias", alias))
	default:
		return 0, goerr.New("unexpected count value type",
			goerr.V("type", fmt.Sprintf("%T", v)), goerr.V("alias", alias))
	}
}

// entityDocID keeps member keys ("<community>/<user>") usable as document IDs.
func entityDocID(kind entity.Kind, key string) string {
	return kind.String() + "_" + strings.ReplaceAll(key, "/", "_")
}

func (r *Firestore) GetOrCreateEntity(ctx context.Context, kind entity.Kind, key string, attrs map[string]string) (*entity.Entity, error) {
	if key == "" {
		return nil, r.eb.New("entity key is empty", goerr.T(errs.TagValidation), goerr.V("kind", kind))
	}

	ref := r.db.Collection(collectionEntities).Doc(entityDocID(kind, key))
	var result entity.Entity

	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err == nil {
			return doc.DataTo(&result)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		now := clock.Now(ctx)
		result = entity.Entity{
			ID:        types.NewEntityID(),
			Kind:      kind,
			Key:       key,
			Attrs:     attrs,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(ref, result)
	})
	if err != nil {
		return nil, r.eb.Wrap(err, "failed to get or create entity", goerr.V("kind", kind), goerr.V("key", key))
	}
	return &result, nil
}

func (r *Firestore) PutAlert(ctx context.Context, alert *incident.Alert) error {
	if alert == nil {
		return r.eb.New("alert is nil", goerr.T(errs.TagValidation))
	}
	if _, err := r.db.Collection(collectionAlerts).Doc(alert.ID.String()).Set(ctx, alert); err != nil {
		return r.eb.Wrap(err, "failed to put alert", goerr.TV(errs.AlertIDKey, alert.ID))
	}
	return nil
}

func (r *Firestore) GetAlert(ctx context.Context, id types.AlertID) (*incident.Alert, error) {
	doc, err := r.db.Collection(collectionAlerts).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, r.eb.Wrap(err, "failed to get alert", goerr.TV(errs.AlertIDKey, id))
	}

	var alert incident.Alert
	if err := doc.DataTo(&alert); err != nil {
		return nil, r.eb.Wrap(err, "failed to decode alert", goerr.TV(errs.AlertIDKey, id))
	}
	return &alert, nil
}

func (r *Firestore) RecordOutcome(ctx context.Context, outcome incident.Outcome) error {
	ref := r.db.Collection(collectionAlerts).Doc(outcome.AlertID.String()).Collection(collectionOutcomes).NewDoc()
	if _, err := ref.Set(ctx, outcome); err != nil {
		return r.eb.Wrap(err, "failed to record outcome", goerr.TV(errs.AlertIDKey, outcome.AlertID))
	}
	return nil
}

func (r *Firestore) ListOutcomes(ctx context.Context, id types.AlertID) ([]incident.Outcome, error) {
	iter := r.db.Collection(collectionAlerts).Doc(id.String()).Collection(collectionOutcomes).
		OrderBy("executed_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var outcomes []incident.Outcome
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, r.eb.Wrap(err, "failed to list outcomes", goerr.TV(errs.AlertIDKey, id))
		}

		var outcome incident.Outcome
		if err := doc.DataTo(&outcome); err != nil {
			return nil, r.eb.Wrap(err, "failed to decode outcome", goerr.TV(errs.AlertIDKey, id), goerr.V("doc_id", doc.Ref.ID))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (r *Firestore) CountActive(ctx context.Context, kind types.SignalKind, subject types.UserID, communityID types.CommunityID) (int, error) {
	query := r.db.Collection(collectionAlerts).
		Where("threat_type", "==", kind).
		Where("subject_user_id", "==", subject).
		Where("community_id", "==", communityID).
		Where("status", "==", types.AlertStatusOpen)

	result, err := query.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, r.eb.Wrap(err, "failed to count active alerts",
			goerr.V("threat_type", kind),
			goerr.TV(errs.UserIDKey, subject),
			goerr.TV(errs.CommunityIDKey, communityID))
	}
	return extractCountFromAggregationResult(result, "count")
}
