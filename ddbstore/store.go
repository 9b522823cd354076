// Package ddbstore is an in-memory emulation of the DynamoDB data plane:
// a table catalog plus per-table ordered item storage with the service's
// conditional-write, query and scan semantics.
//
// The store exposes the SDK's own input/output shapes, so it can stand in
// for a *dynamodb.Client in tests and behind the wire adapter alike.
package ddbstore

import (
	"context"
	"sort"
	"sync"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Store owns every table. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex // guards tables
	tables map[string]*tableState
	engine engine
}

// tableState couples a table's definition with its slice of the engine.
// mu serializes writers per table, so a conditional check and its write are
// atomic; readers take it shared and never see a half-applied write.
type tableState struct {
	mu      sync.RWMutex
	def     table.TableDefinition
	status  table.Status
	encoder *KeyEncoder
	count   int64
}

type config struct {
	newEngine func() (engine, error)
}

type Option func(*config)

// WithBadgerEngine stores items in an in-memory badger instance instead of
// the default btree. Both engines order by the same encoded keys, so the
// choice never changes results.
func WithBadgerEngine() Option {
	return func(c *config) {
		c.newEngine = func() (engine, error) { return newBadgerEngine() }
	}
}

// NewStore creates an empty store. Tables are registered through
// CreateTable, or in bulk by the caller at startup.
func NewStore(opts ...Option) (*Store, error) {
	cfg := config{
		newEngine: func() (engine, error) { return newMemEngine(), nil },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	eng, err := cfg.newEngine()
	if err != nil {
		return nil, err
	}
	return &Store{
		tables: make(map[string]*tableState),
		engine: eng,
	}, nil
}

// Close releases the underlying engine.
func (s *Store) Close() error {
	return s.engine.close()
}

func (s *Store) getTable(tableName *string) (*tableState, error) {
	if tableName == nil || *tableName == "" {
		return nil, ddberr.Validation("TableName is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[*tableName]
	if !ok {
		return nil, ddberr.TableNotFound(*tableName)
	}
	return t, nil
}

// CreateTable registers a table. Provisioning is synchronous: the table
// comes back ACTIVE.
func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	def, err := table.FromCreateTableInput(params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[def.Name]; exists {
		return nil, ddberr.TableExists(def.Name)
	}
	t := &tableState{
		def:     def,
		status:  table.StatusActive,
		encoder: NewKeyEncoder(def.ID, def.KeyDefinitions),
	}
	s.tables[def.Name] = t

	return &dynamodb.CreateTableOutput{
		TableDescription: def.Description(t.status, 0),
	}, nil
}

func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &dynamodb.DescribeTableOutput{
		Table: t.def.Description(t.status, t.count),
	}, nil
}

// DeleteTable removes the table and all its items synchronously.
func (s *Store) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	if params.TableName == nil || *params.TableName == "" {
		return nil, ddberr.Validation("TableName is required")
	}

	s.mu.Lock()
	t, ok := s.tables[*params.TableName]
	if !ok {
		s.mu.Unlock()
		return nil, ddberr.TableNotFound(*params.TableName)
	}
	delete(s.tables, *params.TableName)
	s.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = table.StatusDeleting

	// Drop the table's keyspace from the engine.
	prefix := t.encoder.TablePrefix()
	var keys [][]byte
	err := s.engine.scan(prefix, prefixSuccessor(prefix), false, func(key []byte, _ map[string]types.AttributeValue) (bool, error) {
		keys = append(keys, key)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := s.engine.delete(key); err != nil {
			return nil, err
		}
	}

	return &dynamodb.DeleteTableOutput{
		TableDescription: t.def.Description(t.status, 0),
	}, nil
}

func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if params == nil {
		params = &dynamodb.ListTablesInput{}
	}
	if params.Limit != nil && *params.Limit <= 0 {
		return nil, ddberr.Validation("Limit must be at least 1")
	}
	s.mu.RLock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	if start := params.ExclusiveStartTableName; start != nil {
		idx := sort.SearchStrings(names, *start)
		if idx < len(names) && names[idx] == *start {
			idx++
		}
		names = names[idx:]
	}

	out := &dynamodb.ListTablesOutput{}
	limit := len(names)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}
	out.TableNames = names[:limit]
	if limit < len(names) && limit > 0 {
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	return out, nil
}
