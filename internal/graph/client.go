package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"
	"github.com/moolen/atlas/internal/logging"
)

// Client provides an interface for interacting with FalkorDB
type Client interface {
	// Connect establishes connection to FalkorDB
	Connect(ctx context.Context) error

	// Close closes the connection
	Close() error

	// Ping checks if the connection is alive
	Ping(ctx context.Context) error

	// ExecuteQuery executes a Cypher query and returns results
	ExecuteQuery(ctx context.Context, query GraphQuery) (*QueryResult, error)

	// GetGraphStats retrieves overall graph statistics
	GetGraphStats(ctx context.Context) (*GraphStats, error)

	// InitializeSchema creates indexes and constraints
	InitializeSchema(ctx context.Context) error

	// DeleteGraph completely removes the graph (for testing purposes)
	DeleteGraph(ctx context.Context) error
}

// ClientConfig holds configuration for the FalkorDB client
type ClientConfig struct {
	Host         string        // FalkorDB host
	Port         int           // FalkorDB port
	Password     string        // optional password
	GraphName    string        // name of the graph database
	MaxRetries   int           // max connection retries
	DialTimeout  time.Duration // connection timeout
	ReadTimeout  time.Duration // read timeout
	WriteTimeout time.Duration // write timeout
	PoolSize     int           // connection pool size
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:         "localhost",
		Port:         6380,
		Password:     "",
		GraphName:    "atlas",
		MaxRetries:   3,
		DialTimeout:  30 * time.Second,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		PoolSize:     10,
	}
}

// falkorClient implements the Client interface using FalkorDB Go client
type falkorClient struct {
	config ClientConfig
	logger *logging.Logger
	db     *falkordb.FalkorDB
	graph  *falkordb.Graph
}

// NewClient creates a new FalkorDB client
func NewClient(config ClientConfig) Client {
	return &falkorClient{
		config: config,
		logger: logging.GetLogger("graph.client"),
	}
}

// Connect establishes connection to FalkorDB
func (c *falkorClient) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to FalkorDB at %s:%d (graph: %s)", c.config.Host, c.config.Port, c.config.GraphName)

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	// Note: falkordb.ConnectionOption is an alias for redis.Options
	connOpts := &falkordb.ConnectionOption{
		Addr:         addr,
		Password:     c.config.Password,
		DialTimeout:  c.config.DialTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		WriteTimeout: c.config.WriteTimeout,
		PoolSize:     c.config.PoolSize,
		MaxRetries:   c.config.MaxRetries,
	}

	db, err := falkordb.FalkorDBNew(connOpts)
	if err != nil {
		return fmt.Errorf("failed to create FalkorDB client: %w", err)
	}
	c.db = db
	c.graph = db.SelectGraph(c.config.GraphName)

	c.logger.Info("Successfully connected to FalkorDB")
	return nil
}

// Close closes the connection
func (c *falkorClient) Close() error {
	c.logger.Info("Closing FalkorDB connection")
	if c.db != nil && c.db.Conn != nil {
		return c.db.Conn.Close()
	}
	return nil
}

// Ping checks if the connection is alive
func (c *falkorClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("client not connected")
	}
	// FalkorDB client doesn't have a direct Ping method, but we can execute a simple query
	_, err := c.graph.Query("RETURN 1", nil, nil)
	return err
}

// ExecuteQuery executes a Cypher query and returns results
func (c *falkorClient) ExecuteQuery(ctx context.Context, query GraphQuery) (*QueryResult, error) {
	if c.graph == nil {
		return nil, fmt.Errorf("client not connected")
	}

	var options *falkordb.QueryOptions
	if query.Timeout > 0 {
		options = falkordb.NewQueryOptions().SetTimeout(query.Timeout)
	}

	// The FalkorDB client handles parameter substitution internally
	startTime := time.Now()
	result, err := c.graph.Query(query.Query, query.Parameters, options)
	executionTime := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	queryResult := convertFalkorDBResult(result)
	queryResult.Stats.ExecutionTime = executionTime

	return queryResult, nil
}

// convertFalkorDBResult converts a FalkorDB QueryResult to our QueryResult format
func convertFalkorDBResult(result *falkordb.QueryResult) *QueryResult {
	qr := &QueryResult{
		Columns: []string{},
		Rows:    [][]interface{}{},
		Stats:   QueryStats{},
	}

	// Column names are extracted from the first record
	firstRow := true
	for result.Next() {
		record := result.Record()

		if firstRow {
			qr.Columns = record.Keys()
			firstRow = false
		}

		qr.Rows = append(qr.Rows, record.Values())
	}

	qr.Stats.NodesCreated = result.NodesCreated()
	qr.Stats.NodesDeleted = result.NodesDeleted()
	qr.Stats.RelationshipsCreated = result.RelationshipsCreated()
	qr.Stats.RelationshipsDeleted = result.RelationshipsDeleted()
	qr.Stats.PropertiesSet = result.PropertiesSet()
	qr.Stats.LabelsAdded = result.LabelsAdded()

	return qr
}

// GetGraphStats retrieves overall graph statistics
func (c *falkorClient) GetGraphStats(ctx context.Context) (*GraphStats, error) {
	nodeCountQuery := `
		MATCH (n)
		RETURN labels(n)[0] as type, count(n) as count
	`

	nodeResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: nodeCountQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to query node counts: %w", err)
	}

	edgeCountQuery := `
		MATCH ()-[r]->()
		RETURN type(r) as type, count(r) as count
	`

	edgeResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: edgeCountQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to query edge counts: %w", err)
	}

	timestampQuery := `
		MATCH (e:Event)
		RETURN min(e.occurred_at) as oldest, max(e.occurred_at) as newest
	`

	timestampResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: timestampQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to query timestamps: %w", err)
	}

	stats := &GraphStats{
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}

	for _, row := range nodeResult.Rows {
		if len(row) >= 2 {
			if nodeType, ok := row[0].(string); ok {
				count := RowInt(row[1])
				stats.NodesByType[nodeType] = count
				stats.NodeCount += count
			}
		}
	}

	for _, row := range edgeResult.Rows {
		if len(row) >= 2 {
			if edgeType, ok := row[0].(string); ok {
				count := RowInt(row[1])
				stats.EdgesByType[edgeType] = count
				stats.EdgeCount += count
			}
		}
	}

	if len(timestampResult.Rows) > 0 && len(timestampResult.Rows[0]) >= 2 {
		stats.OldestEventMs = RowInt64(timestampResult.Rows[0][0])
		stats.NewestEventMs = RowInt64(timestampResult.Rows[0][1])
	}

	c.logger.Debug("Graph stats: %d nodes, %d edges (oldest: %d, newest: %d)",
		stats.NodeCount, stats.EdgeCount, stats.OldestEventMs, stats.NewestEventMs)

	return stats, nil
}

// InitializeSchema creates indexes and constraints
func (c *falkorClient) InitializeSchema(ctx context.Context) error {
	c.logger.Info("Initializing graph schema for graph: %s", c.config.GraphName)

	for _, indexQuery := range schemaIndexes {
		_, err := c.ExecuteQuery(ctx, GraphQuery{Query: indexQuery})
		if err != nil {
			// FalkorDB may return error if index already exists, log but continue
			c.logger.Warn("Failed to create index (may already exist): %v", err)
		}
	}

	c.logger.Info("Schema initialization complete")
	return nil
}

// DeleteGraph completely removes the graph (for testing purposes)
func (c *falkorClient) DeleteGraph(ctx context.Context) error {
	if c.graph == nil {
		return fmt.Errorf("client not connected")
	}

	err := c.graph.Delete()
	if err != nil {
		// Ignore "empty key" error which means graph doesn't exist yet
		if strings.Contains(err.Error(), "empty key") {
			c.logger.Debug("Graph '%s' does not exist, nothing to delete", c.config.GraphName)
		} else {
			return fmt.Errorf("failed to delete graph: %w", err)
		}
	} else {
		c.logger.Info("Graph '%s' deleted", c.config.GraphName)
	}

	// Re-select the graph (it will be recreated on next operation)
	c.graph = c.db.SelectGraph(c.config.GraphName)

	return nil
}

// escapeCypherString escapes single quotes in Cypher strings
func escapeCypherString(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
