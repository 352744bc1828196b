package handlers

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	apierrors "github.com/moolen/atlas/internal/api/errors"
	"github.com/moolen/atlas/internal/api/response"
	"github.com/moolen/atlas/internal/graph"
)

func (h *Handlers) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.UserProfileQuery(userID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(result.Rows) == 0 {
		h.writeError(w, apierrors.NewNotFoundError("No profile for user %s", userID))
		return
	}
	_ = response.WriteSuccess(w, profileFromRow(result.Rows[0]))
}

func (h *Handlers) handleUserPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	category := r.URL.Query().Get("category")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.UserPreferencesQuery(userID, category))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = response.WriteSuccess(w, map[string]interface{}{
		"user_id":     userID,
		"preferences": preferencesFromRows(result.Rows),
	})
}

func (h *Handlers) handleUserSkills(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.UserSkillsQuery(userID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = response.WriteSuccess(w, map[string]interface{}{
		"user_id": userID,
		"skills":  skillsFromRows(result.Rows),
	})
}

func (h *Handlers) handleUserPatterns(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.UserPatternsQuery(userID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = response.WriteSuccess(w, map[string]interface{}{
		"user_id":  userID,
		"patterns": patternsFromRows(result.Rows),
	})
}

func (h *Handlers) handleUserInterests(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.UserInterestsQuery(userID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = response.WriteSuccess(w, map[string]interface{}{
		"user_id":   userID,
		"interests": interestsFromRows(result.Rows),
	})
}

// handleUserDataExport returns everything derived about a user in one
// document.
func (h *Handlers) handleUserDataExport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	export := map[string]interface{}{"user_id": userID}

	sections := []struct {
		key   string
		query graph.GraphQuery
		parse func([][]interface{}) interface{}
	}{
		{"profile", graph.UserProfileQuery(userID), firstProfile},
		{"preferences", graph.UserPreferencesQuery(userID, ""), func(rows [][]interface{}) interface{} { return preferencesFromRows(rows) }},
		{"skills", graph.UserSkillsQuery(userID), func(rows [][]interface{}) interface{} { return skillsFromRows(rows) }},
		{"patterns", graph.UserPatternsQuery(userID), func(rows [][]interface{}) interface{} { return patternsFromRows(rows) }},
		{"interests", graph.UserInterestsQuery(userID), func(rows [][]interface{}) interface{} { return interestsFromRows(rows) }},
	}

	// The sections are independent reads, so fetch them concurrently.
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	for _, section := range sections {
		g.Go(func() error {
			result, err := h.graph.ExecuteQuery(ctx, section.query)
			if err != nil {
				return err
			}
			mu.Lock()
			export[section.key] = section.parse(result.Rows)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.writeError(w, err)
		return
	}

	_ = response.WriteSuccess(w, export)
}

// handleUserDelete erases the user's derived data and redacts the user
// entity in place, keeping graph topology intact.
func (h *Handlers) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	deleted, err := h.countUserNodes(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.graph.ExecuteQuery(r.Context(), graph.DeleteUserDataQuery(userID)); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Erased user %s (%d derived nodes)", userID, deleted)
	_ = response.WriteSuccess(w, map[string]interface{}{
		"user_id":       userID,
		"status":        "erased",
		"deleted_count": deleted,
	})
}

func (h *Handlers) countUserNodes(ctx context.Context, userID string) (int, error) {
	result, err := h.graph.ExecuteQuery(ctx, graph.GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			OPTIONAL MATCH (u)-[:HAS_PROFILE|HAS_PREFERENCE|EXHIBITS_PATTERN]->(n)
			RETURN count(n) as derived
		`,
		Parameters: map[string]interface{}{"userID": userID},
	})
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, nil
	}
	return graph.RowInt(result.Rows[0][0]), nil
}

func firstProfile(rows [][]interface{}) interface{} {
	if len(rows) == 0 {
		return nil
	}
	return profileFromRow(rows[0])
}

func profileFromRow(row []interface{}) map[string]interface{} {
	if len(row) < 9 {
		return nil
	}
	return map[string]interface{}{
		"profile_id":          graph.RowString(row[0]),
		"user_id":             graph.RowString(row[1]),
		"display_name":        graph.RowString(row[2]),
		"timezone":            graph.RowString(row[3]),
		"language":            graph.RowString(row[4]),
		"communication_style": graph.RowString(row[5]),
		"technical_level":     graph.RowString(row[6]),
		"created_at":          graph.RowInt64(row[7]),
		"updated_at":          graph.RowInt64(row[8]),
	}
}

func preferencesFromRows(rows [][]interface{}) []map[string]interface{} {
	prefs := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row) < 13 {
			continue
		}
		prefs = append(prefs, map[string]interface{}{
			"preference_id":     graph.RowString(row[0]),
			"category":          graph.RowString(row[1]),
			"key":               graph.RowString(row[2]),
			"polarity":          graph.RowString(row[3]),
			"strength":          graph.RowFloat(row[4]),
			"confidence":        graph.RowFloat(row[5]),
			"source":            graph.RowString(row[6]),
			"context":           graph.RowString(row[7]),
			"scope":             graph.RowString(row[8]),
			"scope_id":          graph.RowString(row[9]),
			"observation_count": graph.RowInt(row[10]),
			"first_observed_at": graph.RowInt64(row[11]),
			"last_confirmed_at": graph.RowInt64(row[12]),
		})
	}
	return prefs
}

func skillsFromRows(rows [][]interface{}) []map[string]interface{} {
	skills := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		skills = append(skills, map[string]interface{}{
			"skill_id":    graph.RowString(row[0]),
			"name":        graph.RowString(row[1]),
			"category":    graph.RowString(row[2]),
			"proficiency": graph.RowString(row[3]),
			"confidence":  graph.RowFloat(row[4]),
			"source":      graph.RowString(row[5]),
		})
	}
	return skills
}

func patternsFromRows(rows [][]interface{}) []map[string]interface{} {
	patterns := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		patterns = append(patterns, map[string]interface{}{
			"pattern_id":        graph.RowString(row[0]),
			"pattern_type":      graph.RowString(row[1]),
			"description":       graph.RowString(row[2]),
			"confidence":        graph.RowFloat(row[3]),
			"observation_count": graph.RowInt(row[4]),
			"first_detected_at": graph.RowInt64(row[5]),
			"last_confirmed_at": graph.RowInt64(row[6]),
		})
	}
	return patterns
}

func interestsFromRows(rows [][]interface{}) []map[string]interface{} {
	interests := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		interests = append(interests, map[string]interface{}{
			"name":        graph.RowString(row[0]),
			"entity_type": graph.RowString(row[1]),
			"weight":      graph.RowFloat(row[2]),
			"source":      graph.RowString(row[3]),
		})
	}
	return interests
}
