package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store in an embedded BadgerDB database.
type Badger struct {
	db   *badger.DB
	opts *Options
}

// OpenBadger opens or creates the database in dir. An empty dir keeps the
// database in memory. opts may be nil.
func OpenBadger(dir string, opts *Options) (*Badger, error) {
	bo := badger.DefaultOptions(dir).WithLogger(badgerLog{})
	if dir == "" {
		bo = bo.WithInMemory(true)
	}
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("kv: badger: open %q: %w", dir, err)
	}
	return &Badger{db: db, opts: opts}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.opts.encode(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("kv: badger: get %s: %w", key, err)
	}
	return val, nil
}

func (b *Badger) Set(_ context.Context, key Key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.opts.encode(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv: badger: set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in a single transaction.
func (b *Badger) Delete(_ context.Context, keys ...Key) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(b.opts.encode(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv: badger: delete: %w", err)
	}
	return nil
}

// List reads the matching entries in one read transaction before yielding.
func (b *Badger) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := b.opts.scanPrefix(prefix)
	return func(yield func(Entry, error) bool) {
		var entries []Entry
		err := b.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 16, Prefix: p})
			defer it.Close()
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				entries = append(entries, Entry{Key: b.opts.decode(it.Item().KeyCopy(nil)), Value: val})
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, fmt.Errorf("kv: badger: list %s: %w", prefix, err))
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Badger) Close() error { return b.db.Close() }

// badgerLog sends badger's warnings and errors to slog and drops the rest.
type badgerLog struct{}

func (badgerLog) Errorf(format string, args ...any) {
	slog.Error("kv: badger", "msg", fmt.Sprintf(format, args...))
}

func (badgerLog) Warningf(format string, args ...any) {
	slog.Warn("kv: badger", "msg", fmt.Sprintf(format, args...))
}

func (badgerLog) Infof(string, ...any)  {}
func (badgerLog) Debugf(string, ...any) {}
