// Package table holds table schemas: key definitions, attribute definitions,
// lifecycle status and the description snapshots returned by the catalog.
package table

import (
	"fmt"
	"time"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Region and account baked into generated ARNs. The emulator serves a single
// pretend account, like the real local distribution does.
const (
	Region    = "us-east-1"
	AccountID = "000000000000"
)

type Status string

const (
	StatusCreating Status = "CREATING"
	StatusActive   Status = "ACTIVE"
	StatusDeleting Status = "DELETING"
)

type TableDefinition struct {
	Name                 string
	KeyDefinitions       PrimaryKeyDefinition
	AttributeDefinitions []KeyDef

	// Assigned at creation time.
	ID        string
	CreatedAt time.Time
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (t TableDefinition) ARN() string {
	return fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", Region, AccountID, t.Name)
}

// FromCreateTableInput validates a CreateTable request and builds the
// definition. Exactly one HASH key, at most one RANGE key, both backed by an
// attribute definition of a key-capable type.
func FromCreateTableInput(params *dynamodb.CreateTableInput) (TableDefinition, error) {
	def := TableDefinition{}
	if params.TableName == nil || *params.TableName == "" {
		return def, ddberr.Validation("TableName is required")
	}
	def.Name = *params.TableName

	attrKinds := make(map[string]KeyKind, len(params.AttributeDefinitions))
	for _, ad := range params.AttributeDefinitions {
		if ad.AttributeName == nil {
			return def, ddberr.Validation("AttributeDefinitions: AttributeName is required")
		}
		kind := KeyKind(ad.AttributeType)
		switch kind {
		case KeyKindS, KeyKindN, KeyKindB:
		default:
			return def, ddberr.Validation("attribute %q: unsupported attribute type %q", *ad.AttributeName, ad.AttributeType)
		}
		attrKinds[*ad.AttributeName] = kind
		def.AttributeDefinitions = append(def.AttributeDefinitions, KeyDef{Name: *ad.AttributeName, Kind: kind})
	}

	var sawHash, sawRange bool
	for _, ks := range params.KeySchema {
		if ks.AttributeName == nil {
			return def, ddberr.Validation("KeySchema: AttributeName is required")
		}
		name := *ks.AttributeName
		kind, ok := attrKinds[name]
		if !ok {
			return def, ddberr.Validation("key attribute %q has no attribute definition", name)
		}
		switch ks.KeyType {
		case types.KeyTypeHash:
			if sawHash {
				return def, ddberr.Validation("multiple HASH keys in key schema")
			}
			sawHash = true
			def.KeyDefinitions.PartitionKey = KeyDef{Name: name, Kind: kind}
		case types.KeyTypeRange:
			if sawRange {
				return def, ddberr.Validation("multiple RANGE keys in key schema")
			}
			sawRange = true
			def.KeyDefinitions.SortKey = KeyDef{Name: name, Kind: kind}
		default:
			return def, ddberr.Validation("key attribute %q: unknown key type %q", name, ks.KeyType)
		}
	}
	if !sawHash {
		return def, ddberr.Validation("key schema must declare exactly one HASH key")
	}

	def.ID = uuid.NewString()
	def.CreatedAt = time.Now().UTC()
	return def, nil
}

// Description renders the SDK-shaped table description for the given status
// and item count.
func (t TableDefinition) Description(status Status, itemCount int64) *types.TableDescription {
	keySchema := []types.KeySchemaElement{{
		AttributeName: &t.KeyDefinitions.PartitionKey.Name,
		KeyType:       types.KeyTypeHash,
	}}
	if t.KeyDefinitions.HasSortKey() {
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: &t.KeyDefinitions.SortKey.Name,
			KeyType:       types.KeyTypeRange,
		})
	}

	attrDefs := make([]types.AttributeDefinition, len(t.AttributeDefinitions))
	for i, ad := range t.AttributeDefinitions {
		name := ad.Name
		attrDefs[i] = types.AttributeDefinition{
			AttributeName: &name,
			AttributeType: types.ScalarAttributeType(ad.Kind),
		}
	}

	arn := t.ARN()
	id := t.ID
	name := t.Name
	created := t.CreatedAt
	size := int64(0)
	return &types.TableDescription{
		TableName:            &name,
		TableId:              &id,
		TableArn:             &arn,
		TableStatus:          types.TableStatus(status),
		KeySchema:            keySchema,
		AttributeDefinitions: attrDefs,
		CreationDateTime:     &created,
		ItemCount:            &itemCount,
		TableSizeBytes:       &size,
	}
}
