package ddbstore

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// engine is the ordered key-value storage under the store. Items are kept
// under the encoded primary-key bytes, so iteration order is the table's
// sort order.
//
// Engines are not safe for concurrent mutation of one table; the store's
// per-table locking provides that.
type engine interface {
	// set stores an item under key, overwriting any existing one.
	set(key []byte, item map[string]types.AttributeValue) error
	// get returns the item under key, or found=false.
	get(key []byte) (item map[string]types.AttributeValue, found bool, err error)
	// delete removes the item under key. Deleting an absent key is a no-op.
	delete(key []byte) error
	// scan iterates items with start <= key < end in key order, descending
	// when reverse is set. A nil end means unbounded. fn returns false to
	// stop early.
	scan(start, end []byte, reverse bool, fn func(key []byte, item map[string]types.AttributeValue) (bool, error)) error
	// close releases the engine's resources.
	close() error
}
