package graph

import "time"

// GraphQuery represents a Cypher query with parameters.
type GraphQuery struct {
	Query      string                 `json:"query"`
	Parameters map[string]interface{} `json:"parameters"`
	Timeout    int                    `json:"timeout,omitempty"` // Timeout in milliseconds (0 = default)
}

// QueryResult represents the result of a graph query
type QueryResult struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Stats   QueryStats      `json:"stats"`
}

// QueryStats represents query execution statistics
type QueryStats struct {
	NodesCreated         int           `json:"nodesCreated"`
	NodesDeleted         int           `json:"nodesDeleted"`
	RelationshipsCreated int           `json:"relationshipsCreated"`
	RelationshipsDeleted int           `json:"relationshipsDeleted"`
	PropertiesSet        int           `json:"propertiesSet"`
	LabelsAdded          int           `json:"labelsAdded"`
	ExecutionTime        time.Duration `json:"executionTime"`
}

// GraphStats represents overall graph statistics
type GraphStats struct {
	NodeCount       int            `json:"nodeCount"`
	EdgeCount       int            `json:"edgeCount"`
	NodesByType     map[string]int `json:"nodesByType"`
	EdgesByType     map[string]int `json:"edgesByType"`
	OldestEventMs   int64          `json:"oldestEventMs"`
	NewestEventMs   int64          `json:"newestEventMs"`
}

// Row value accessors. FalkorDB returns numerics as int64 or float64
// depending on the query, and absent properties as nil.

// RowString extracts a string cell, returning "" for nil or non-strings.
func RowString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// RowInt extracts an integer cell.
func RowInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// RowInt64 extracts an int64 cell.
func RowInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

// RowFloat extracts a float cell.
func RowFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// RowStrings extracts a string-array cell.
func RowStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
