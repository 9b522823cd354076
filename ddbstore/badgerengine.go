package ddbstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	badger "github.com/dgraph-io/badger/v4"
)

// badgerEngine stores serialized items in an in-memory badger instance.
// Data never touches disk; the store's durability story ends with the
// process, which is all a local emulator needs.
type badgerEngine struct {
	db *badger.DB
}

func newBadgerEngine() (*badgerEngine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &badgerEngine{db: db}, nil
}

func (e *badgerEngine) set(key []byte, item map[string]types.AttributeValue) error {
	data, err := SerializeItem(item)
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (e *badgerEngine) get(key []byte) (map[string]types.AttributeValue, bool, error) {
	var item map[string]types.AttributeValue
	err := e.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(key)
		if err != nil {
			return err
		}
		return entry.Value(func(data []byte) error {
			item, err = DeserializeItem(data)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func (e *badgerEngine) delete(key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *badgerEngine) scan(start, end []byte, reverse bool, fn func(key []byte, item map[string]types.AttributeValue) (bool, error)) error {
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		if !reverse {
			for it.Seek(start); it.Valid(); it.Next() {
				key := it.Item().KeyCopy(nil)
				if end != nil && bytes.Compare(key, end) >= 0 {
					return nil
				}
				keep, err := e.emit(it, key, fn)
				if err != nil || !keep {
					return err
				}
			}
			return nil
		}

		// Reverse iteration seeks to the largest key <= the seek target.
		// end is exclusive, so keys at or past it are skipped.
		if end != nil {
			it.Seek(end)
		} else {
			it.Rewind()
		}
		for ; it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if end != nil && bytes.Compare(key, end) >= 0 {
				continue
			}
			if bytes.Compare(key, start) < 0 {
				return nil
			}
			keep, err := e.emit(it, key, fn)
			if err != nil || !keep {
				return err
			}
		}
		return nil
	})
}

func (e *badgerEngine) emit(it *badger.Iterator, key []byte, fn func(key []byte, item map[string]types.AttributeValue) (bool, error)) (bool, error) {
	var item map[string]types.AttributeValue
	err := it.Item().Value(func(data []byte) error {
		var err error
		item, err = DeserializeItem(data)
		return err
	})
	if err != nil {
		return false, err
	}
	return fn(key, item)
}

func (e *badgerEngine) close() error {
	return e.db.Close()
}
