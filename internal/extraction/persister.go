package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moolen/atlas/internal/entity"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
)

// Persister writes sanitized extraction results into the graph with
// DERIVED_FROM provenance on every derived node.
type Persister struct {
	client   graph.Client
	resolver *entity.Resolver
	logger   *logging.Logger
	now      func() time.Time
}

// NewPersister creates a persister.
func NewPersister(client graph.Client) *Persister {
	return &Persister{
		client:   client,
		resolver: entity.NewResolver(),
		logger:   logging.GetLogger("extraction.persist"),
		now:      time.Now,
	}
}

// Persist writes one extraction result. Entity mentions are resolved
// against existing entities before new nodes are created.
func (p *Persister) Persist(ctx context.Context, result *SessionExtractionResult) error {
	known, err := p.KnownEntities(ctx)
	if err != nil {
		return err
	}
	nowMs := p.now().UnixMilli()

	for _, item := range result.Entities {
		persisted, err := p.persistEntity(ctx, item, known, nowMs)
		if err != nil {
			return err
		}
		known = append(known, persisted)
	}

	for _, item := range result.Preferences {
		if err := p.persistPreference(ctx, result.SessionID, item, nowMs); err != nil {
			return err
		}
	}
	for _, item := range result.Skills {
		if err := p.persistSkill(ctx, result.SessionID, item, nowMs); err != nil {
			return err
		}
	}
	for _, item := range result.Interests {
		if err := p.persistInterest(ctx, item, nowMs); err != nil {
			return err
		}
	}
	return nil
}

// persistEntity applies the resolver's decision: MERGE folds the
// mention into the canonical entity, SAME_AS and RELATED_TO keep the
// mention as its own node linked to the near match, CREATE starts a
// fresh entity.
func (p *Persister) persistEntity(ctx context.Context, item ExtractedEntity, known []entity.Known, nowMs int64) (entity.Known, error) {
	res := p.resolver.Resolve(item.Name, item.EntityType, known)

	name := res.CanonicalName
	entityType := res.EntityType
	if res.Action != entity.ActionMerge {
		name = entity.Normalize(item.Name)
		entityType = item.EntityType
	}
	if res.Action != entity.ActionCreate {
		p.logger.Debug("Resolved mention %q: %s %q (%.3f, %s)",
			item.Name, res.Action, res.CanonicalName, res.Confidence, res.Justification)
	}
	persisted := entity.Known{Name: name, EntityType: entityType}

	merge := graph.MergeEntityQuery(uuid.NewString(), name, models.EntityType(entityType), nowMs)
	if _, err := p.client.ExecuteQuery(ctx, merge); err != nil {
		return persisted, fmt.Errorf("persisting entity %q: %w", name, err)
	}

	switch res.Action {
	case entity.ActionSameAs:
		if name == res.CanonicalName {
			// Exact name hit with a differing type: entities are keyed
			// by name, so there is only one node to point at.
			break
		}
		q := graph.MergeSameAsEdgeQuery(name, res.CanonicalName, res.Confidence, res.Justification)
		if _, err := p.client.ExecuteQuery(ctx, q); err != nil {
			return persisted, fmt.Errorf("linking %q SAME_AS %q: %w", name, res.CanonicalName, err)
		}
	case entity.ActionRelatedTo:
		q := graph.MergeRelatedToEdgeQuery(name, res.CanonicalName, res.Confidence, res.Justification)
		if _, err := p.client.ExecuteQuery(ctx, q); err != nil {
			return persisted, fmt.Errorf("linking %q RELATED_TO %q: %w", name, res.CanonicalName, err)
		}
	}

	if item.EventID != "" {
		ref := graph.MergeReferencesEdgeQuery(item.EventID, name, item.Confidence)
		if _, err := p.client.ExecuteQuery(ctx, ref); err != nil {
			return persisted, fmt.Errorf("linking entity %q: %w", name, err)
		}
	}
	return persisted, nil
}

func (p *Persister) persistPreference(ctx context.Context, sessionID string, item ExtractedPreference, nowMs int64) error {
	if err := p.ensureUser(ctx, item.UserID, nowMs); err != nil {
		return err
	}

	preferenceID := uuid.NewString()
	merge := graph.MergePreferenceQuery(item.UserID, preferenceID, item.Category, item.Key,
		item.Polarity, item.Source, item.Context, "global", "", item.Strength, item.Confidence, nowMs)
	result, err := p.client.ExecuteQuery(ctx, merge)
	if err != nil {
		return fmt.Errorf("persisting preference %s/%s: %w", item.Category, item.Key, err)
	}
	// The merge may have matched an existing preference; use its ID.
	if len(result.Rows) > 0 && len(result.Rows[0]) > 0 {
		if id := graph.RowString(result.Rows[0][0]); id != "" {
			preferenceID = id
		}
	}

	if item.AboutEntity != "" {
		about := graph.MergePreferenceAboutQuery(preferenceID, entity.Normalize(item.AboutEntity))
		if _, err := p.client.ExecuteQuery(ctx, about); err != nil {
			return fmt.Errorf("linking preference subject: %w", err)
		}
	}
	if item.EventID != "" {
		derived := graph.MergeDerivedFromQuery("Preference", "preference_id", preferenceID,
			item.EventID, item.Source, sessionID, nowMs)
		if _, err := p.client.ExecuteQuery(ctx, derived); err != nil {
			return fmt.Errorf("recording preference provenance: %w", err)
		}
	}
	return nil
}

func (p *Persister) persistSkill(ctx context.Context, sessionID string, item ExtractedSkill, nowMs int64) error {
	if err := p.ensureUser(ctx, item.UserID, nowMs); err != nil {
		return err
	}

	skillID := uuid.NewString()
	merge := graph.MergeSkillQuery(item.UserID, skillID, entity.Normalize(item.Name), item.Category,
		item.Proficiency, item.Source, item.Confidence, nowMs)
	result, err := p.client.ExecuteQuery(ctx, merge)
	if err != nil {
		return fmt.Errorf("persisting skill %q: %w", item.Name, err)
	}
	if len(result.Rows) > 0 && len(result.Rows[0]) > 0 {
		if id := graph.RowString(result.Rows[0][0]); id != "" {
			skillID = id
		}
	}

	if item.EventID != "" {
		derived := graph.MergeDerivedFromQuery("Skill", "skill_id", skillID,
			item.EventID, item.Source, sessionID, nowMs)
		if _, err := p.client.ExecuteQuery(ctx, derived); err != nil {
			return fmt.Errorf("recording skill provenance: %w", err)
		}
	}
	return nil
}

func (p *Persister) persistInterest(ctx context.Context, item ExtractedInterest, nowMs int64) error {
	if err := p.ensureUser(ctx, item.UserID, nowMs); err != nil {
		return err
	}

	name := entity.Normalize(item.EntityName)
	merge := graph.MergeEntityQuery(uuid.NewString(), name, models.EntityTypeConcept, nowMs)
	if _, err := p.client.ExecuteQuery(ctx, merge); err != nil {
		return fmt.Errorf("persisting interest entity %q: %w", name, err)
	}

	interested := graph.MergeInterestedInQuery(item.UserID, name, item.Source, item.Weight, nowMs)
	if _, err := p.client.ExecuteQuery(ctx, interested); err != nil {
		return fmt.Errorf("persisting interest in %q: %w", name, err)
	}
	return nil
}

func (p *Persister) ensureUser(ctx context.Context, userID string, nowMs int64) error {
	if userID == "" {
		return fmt.Errorf("extraction item has no user_id")
	}
	merge := graph.MergeEntityQuery(userID, userID, models.EntityTypeUser, nowMs)
	if _, err := p.client.ExecuteQuery(ctx, merge); err != nil {
		return fmt.Errorf("ensuring user %s: %w", userID, err)
	}
	return nil
}

// KnownEntities lists the most-mentioned entities with their types,
// used both for resolution and for the extraction prompt's dedup list.
func (p *Persister) KnownEntities(ctx context.Context) ([]entity.Known, error) {
	result, err := p.client.ExecuteQuery(ctx, graph.GraphQuery{
		Query: `MATCH (n:Entity) RETURN n.name as name, n.entity_type as entity_type ORDER BY n.mention_count DESC LIMIT 500`,
	})
	if err != nil {
		return nil, fmt.Errorf("listing known entities: %w", err)
	}
	known := make([]entity.Known, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		if name := graph.RowString(row[0]); name != "" {
			known = append(known, entity.Known{
				Name:       name,
				EntityType: graph.RowString(row[1]),
			})
		}
	}
	return known, nil
}
