package ddbstore

import (
	"bytes"

	"github.com/acksell/ddblocal/ddbstore/astutil"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/btree"
)

// memEngine keeps everything in one btree ordered by encoded key bytes.
type memEngine struct {
	tree *btree.BTreeG[*memEntry]
}

type memEntry struct {
	key  []byte
	item map[string]types.AttributeValue
}

func memLess(l, r *memEntry) bool {
	return bytes.Compare(l.key, r.key) < 0
}

func newMemEngine() *memEngine {
	return &memEngine{tree: btree.NewG(2, memLess)}
}

func (e *memEngine) set(key []byte, item map[string]types.AttributeValue) error {
	e.tree.ReplaceOrInsert(&memEntry{key: bytes.Clone(key), item: astutil.CopyItem(item)})
	return nil
}

func (e *memEngine) get(key []byte) (map[string]types.AttributeValue, bool, error) {
	entry, found := e.tree.Get(&memEntry{key: key})
	if !found {
		return nil, false, nil
	}
	return astutil.CopyItem(entry.item), true, nil
}

func (e *memEngine) delete(key []byte) error {
	e.tree.Delete(&memEntry{key: key})
	return nil
}

func (e *memEngine) scan(start, end []byte, reverse bool, fn func(key []byte, item map[string]types.AttributeValue) (bool, error)) error {
	var iterErr error
	iter := func(entry *memEntry) bool {
		keep, err := fn(entry.key, astutil.CopyItem(entry.item))
		if err != nil {
			iterErr = err
			return false
		}
		return keep
	}

	if !reverse {
		if end == nil {
			e.tree.AscendGreaterOrEqual(&memEntry{key: start}, iter)
		} else {
			e.tree.AscendRange(&memEntry{key: start}, &memEntry{key: end}, iter)
		}
		return iterErr
	}

	// Descending: walk down from just below end, stop below start.
	desc := func(entry *memEntry) bool {
		if end != nil && bytes.Compare(entry.key, end) >= 0 {
			return true
		}
		if bytes.Compare(entry.key, start) < 0 {
			return false
		}
		return iter(entry)
	}
	if end == nil {
		e.tree.Descend(desc)
	} else {
		e.tree.DescendLessOrEqual(&memEntry{key: end}, desc)
	}
	return iterErr
}

func (e *memEngine) close() error {
	e.tree.Clear(false)
	return nil
}
