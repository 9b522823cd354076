// Package schema defines the yaml table-schema files the emulator can
// preload at startup, so a local stack comes up with its tables already
// created.
package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

// Schema is the root of one schema file.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table describes one table to create.
type Table struct {
	Name         string  `yaml:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty"`
}

// KeyDef describes a key attribute.
type KeyDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "S", "N", or "B"
}

// Load parses every file matching the glob pattern and merges their tables.
func Load(pattern string) (*Schema, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad schema pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no schema files match %q", pattern)
	}

	merged := &Schema{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		var s Schema
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", path, err)
		}
		merged.Tables = append(merged.Tables, s.Tables...)
	}
	return merged, nil
}

// CreateTableInput renders the table as the catalog request that creates it.
func (t Table) CreateTableInput() (*dynamodb.CreateTableInput, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("schema table without a name")
	}
	if t.PartitionKey.Name == "" {
		return nil, fmt.Errorf("schema table %q has no partition key", t.Name)
	}

	name := t.Name
	in := &dynamodb.CreateTableInput{
		TableName: &name,
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: &t.PartitionKey.Name,
			AttributeType: types.ScalarAttributeType(t.PartitionKey.Kind),
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: &t.PartitionKey.Name,
			KeyType:       types.KeyTypeHash,
		}},
	}
	if t.SortKey != nil {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: &t.SortKey.Name,
			AttributeType: types.ScalarAttributeType(t.SortKey.Kind),
		})
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: &t.SortKey.Name,
			KeyType:       types.KeyTypeRange,
		})
	}
	return in, nil
}
