package graph

import "fmt"

// Personalization queries. Users are modeled as Entity nodes of type
// "user"; profile, preference, skill and pattern nodes hang off them.

// MergeUserProfileQuery upserts the stable profile attributes of a user.
func MergeUserProfileQuery(userID string, attrs map[string]interface{}, nowMs int64) GraphQuery {
	params := map[string]interface{}{
		"userID":    userID,
		"profileID": "profile:" + userID,
		"now":       nowMs,
	}
	setClauses := ""
	for _, key := range []string{"display_name", "timezone", "language", "communication_style", "technical_level"} {
		if v, ok := attrs[key]; ok {
			params[key] = v
			setClauses += fmt.Sprintf(", p.%s = $%s", key, key)
		}
	}
	return GraphQuery{
		Query: fmt.Sprintf(`
			MERGE (u:Entity {name: $userID})
			ON CREATE SET u.entity_id = $userID, u.entity_type = 'user',
			              u.first_seen = $now, u.last_seen = $now, u.mention_count = 1
			MERGE (p:UserProfile {user_id: $userID})
			ON CREATE SET p.profile_id = $profileID, p.created_at = $now
			SET p.updated_at = $now%s
			MERGE (u)-[:HAS_PROFILE]->(p)
		`, setClauses),
		Parameters: params,
	}
}

// MergePreferenceQuery upserts a preference keyed by category and key.
// A re-observation bumps the count and keeps the earliest observation.
func MergePreferenceQuery(userID, preferenceID, category, key, polarity, source, context, scope, scopeID string,
	strength, confidence float64, nowMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			MERGE (p:Preference {category: $category, key: $key, scope: $scope, scope_id: $scopeID})
			ON CREATE SET
				p.preference_id = $preferenceID,
				p.observation_count = 0,
				p.access_count = 0,
				p.stability = 0.5
			SET p.polarity = $polarity,
			    p.strength = $strength,
			    p.confidence = $confidence,
			    p.source = $source,
			    p.context = $context,
			    p.observation_count = p.observation_count + 1,
			    p.first_observed_at = coalesce(p.first_observed_at, $now),
			    p.last_confirmed_at = $now
			MERGE (u)-[:HAS_PREFERENCE]->(p)
			RETURN p.preference_id as preference_id
		`,
		Parameters: map[string]interface{}{
			"userID":       userID,
			"preferenceID": preferenceID,
			"category":     category,
			"key":          key,
			"polarity":     polarity,
			"strength":     strength,
			"confidence":   confidence,
			"source":       source,
			"context":      context,
			"scope":        scope,
			"scopeID":      scopeID,
			"now":          nowMs,
		},
	}
}

// MergePreferenceAboutQuery links a preference to the entity it is about.
func MergePreferenceAboutQuery(preferenceID, entityName string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (p:Preference {preference_id: $preferenceID})
			MATCH (n:Entity {name: $entityName})
			MERGE (p)-[:ABOUT]->(n)
		`,
		Parameters: map[string]interface{}{
			"preferenceID": preferenceID,
			"entityName":   entityName,
		},
	}
}

// MergeDerivedFromQuery records the provenance of an extracted node:
// which event it came from, how, and when.
func MergeDerivedFromQuery(nodeLabel, idField, nodeID, eventID, method, sessionID string, extractedAtMs int64) GraphQuery {
	return GraphQuery{
		Query: fmt.Sprintf(`
			MATCH (n:%s {%s: $nodeID})
			MATCH (e:Event {event_id: $eventID})
			MERGE (n)-[r:DERIVED_FROM]->(e)
			ON CREATE SET
				r.method = $method,
				r.session_id = $sessionID,
				r.extracted_at = $extractedAt
		`, nodeLabel, idField),
		Parameters: map[string]interface{}{
			"nodeID":      nodeID,
			"eventID":     eventID,
			"method":      method,
			"sessionID":   sessionID,
			"extractedAt": extractedAtMs,
		},
	}
}

// MergeSkillQuery upserts a shared skill node and the user's HAS_SKILL
// edge. Proficiency lives on the edge so skills stay shared.
func MergeSkillQuery(userID, skillID, name, category, proficiency, source string, confidence float64, nowMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			MERGE (s:Skill {name: $name, category: $category})
			ON CREATE SET s.skill_id = $skillID, s.created_at = $now
			MERGE (u)-[r:HAS_SKILL]->(s)
			SET r.proficiency = $proficiency,
			    r.confidence = $confidence,
			    r.source = $source,
			    r.updated_at = $now
			RETURN s.skill_id as skill_id
		`,
		Parameters: map[string]interface{}{
			"userID":      userID,
			"skillID":     skillID,
			"name":        name,
			"category":    category,
			"proficiency": proficiency,
			"confidence":  confidence,
			"source":      source,
			"now":         nowMs,
		},
	}
}

// MergeInterestedInQuery records a weighted interest edge to an entity.
func MergeInterestedInQuery(userID, entityName, source string, weight float64, nowMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			MATCH (n:Entity {name: $entityName})
			MERGE (u)-[r:INTERESTED_IN]->(n)
			SET r.weight = $weight,
			    r.source = $source,
			    r.updated_at = $now
		`,
		Parameters: map[string]interface{}{
			"userID":     userID,
			"entityName": entityName,
			"source":     source,
			"weight":     weight,
			"now":        nowMs,
		},
	}
}

// MergeBehavioralPatternQuery upserts a recurring behavior for a user.
func MergeBehavioralPatternQuery(userID, patternID, patternType, description string, confidence float64, nowMs int64) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			MERGE (b:BehavioralPattern {pattern_type: $patternType, description: $description})
			ON CREATE SET
				b.pattern_id = $patternID,
				b.observation_count = 0,
				b.access_count = 0,
				b.stability = 0.5,
				b.first_detected_at = $now
			SET b.confidence = $confidence,
			    b.observation_count = b.observation_count + 1,
			    b.last_confirmed_at = $now
			MERGE (u)-[:EXHIBITS_PATTERN]->(b)
			RETURN b.pattern_id as pattern_id
		`,
		Parameters: map[string]interface{}{
			"userID":      userID,
			"patternID":   patternID,
			"patternType": patternType,
			"description": description,
			"confidence":  confidence,
			"now":         nowMs,
		},
	}
}

// UserProfileQuery reads a user's profile node.
func UserProfileQuery(userID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})-[:HAS_PROFILE]->(p:UserProfile)
			RETURN p.profile_id as profile_id, p.user_id as user_id,
			       p.display_name as display_name, p.timezone as timezone,
			       p.language as language,
			       p.communication_style as communication_style,
			       p.technical_level as technical_level,
			       p.created_at as created_at, p.updated_at as updated_at
		`,
		Parameters: map[string]interface{}{
			"userID": userID,
		},
	}
}

// UserPreferencesQuery reads a user's preferences, optionally filtered
// by category.
func UserPreferencesQuery(userID, category string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})-[:HAS_PREFERENCE]->(p:Preference)
			WHERE $category = '' OR p.category = $category
			RETURN p.preference_id as preference_id, p.category as category,
			       p.key as key, p.polarity as polarity, p.strength as strength,
			       p.confidence as confidence, p.source as source,
			       p.context as context, p.scope as scope, p.scope_id as scope_id,
			       p.observation_count as observation_count,
			       p.first_observed_at as first_observed_at,
			       p.last_confirmed_at as last_confirmed_at
			ORDER BY p.confidence DESC
		`,
		Parameters: map[string]interface{}{
			"userID":   userID,
			"category": category,
		},
	}
}

// UserSkillsQuery reads a user's skills with edge-level proficiency.
func UserSkillsQuery(userID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})-[r:HAS_SKILL]->(s:Skill)
			RETURN s.skill_id as skill_id, s.name as name,
			       s.category as category, r.proficiency as proficiency,
			       r.confidence as confidence, r.source as source
			ORDER BY r.confidence DESC
		`,
		Parameters: map[string]interface{}{
			"userID": userID,
		},
	}
}

// UserPatternsQuery reads a user's behavioral patterns.
func UserPatternsQuery(userID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})-[:EXHIBITS_PATTERN]->(b:BehavioralPattern)
			RETURN b.pattern_id as pattern_id, b.pattern_type as pattern_type,
			       b.description as description, b.confidence as confidence,
			       b.observation_count as observation_count,
			       b.first_detected_at as first_detected_at,
			       b.last_confirmed_at as last_confirmed_at
			ORDER BY b.confidence DESC
		`,
		Parameters: map[string]interface{}{
			"userID": userID,
		},
	}
}

// UserInterestsQuery reads a user's weighted interests.
func UserInterestsQuery(userID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})-[r:INTERESTED_IN]->(n:Entity)
			RETURN n.name as name, n.entity_type as entity_type,
			       r.weight as weight, r.source as source
			ORDER BY r.weight DESC
		`,
		Parameters: map[string]interface{}{
			"userID": userID,
		},
	}
}

// DeleteUserDataQuery erases everything derived about a user: profile,
// preferences, skills edges and patterns are deleted, and the user
// entity name is redacted in place so graph topology stays intact.
func DeleteUserDataQuery(userID string) GraphQuery {
	return GraphQuery{
		Query: `
			MATCH (u:Entity {name: $userID})
			OPTIONAL MATCH (u)-[:HAS_PROFILE]->(p:UserProfile)
			OPTIONAL MATCH (u)-[:HAS_PREFERENCE]->(pref:Preference)
			OPTIONAL MATCH (u)-[:EXHIBITS_PATTERN]->(b:BehavioralPattern)
			DETACH DELETE p, pref, b
			WITH u
			MATCH (u)
			OPTIONAL MATCH (u)-[skill:HAS_SKILL]->()
			OPTIONAL MATCH (u)-[interest:INTERESTED_IN]->()
			DELETE skill, interest
			SET u.name = 'REDACTED', u.entity_id = 'REDACTED'
		`,
		Parameters: map[string]interface{}{
			"userID": userID,
		},
	}
}
