// Package badgerstore provides an embedded persistent backend for the strata
// contract on BadgerDB: records are stored as JSON values under
// collection-prefixed keys and read back through prefix-scan streaming.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	badgeroptions "github.com/dgraph-io/badger/v4/options"

	"github.com/quarryhq/strata"
)

func init() {
	strata.RegisterBackend("badger", func(_ context.Context, cfg *strata.Config, logger strata.Logger) (strata.Backend, error) {
		if cfg.GetBoolOrFalse("backend.badger.inmemory") {
			return OpenInMemory(WithLogger(logger))
		}
		return Open(cfg.GetStringOrDef("backend.badger.path", "strata-data"), WithLogger(logger))
	})
}

// Backend wraps a BadgerDB instance behind the strata backend contract. It
// exposes streaming reads, counting, upsert-by-id and teardown; bulk reads
// are derived by the collection handle.
type Backend struct {
	db     *badger.DB
	logger strata.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger routes Badger's internal logging through the given logger.
func WithLogger(logger strata.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Open opens (creating if needed) a BadgerDB database at the given directory.
func Open(path string, opts ...Option) (*Backend, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("badgerstore: create %s: %w", path, err)
		}
	} else if err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("badgerstore: %s is not a directory", path)
	}
	return open(badger.DefaultOptions(path), opts...)
}

// OpenInMemory opens an ephemeral database, useful for tests.
func OpenInMemory(opts ...Option) (*Backend, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts...)
}

func open(badgerOpts badger.Options, opts ...Option) (*Backend, error) {
	b := &Backend{logger: strata.NewNoopLogger()}
	for _, opt := range opts {
		opt(b)
	}
	badgerOpts.Logger = &badgerLoggerAdapter{logger: b.logger}
	badgerOpts.Compression = badgeroptions.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	b.db = db
	return b, nil
}

func (b *Backend) Name() string { return "badger" }

// Close closes the underlying database.
func (b *Backend) Close(context.Context) error {
	return b.db.Close()
}

func (b *Backend) Insert(_ context.Context, collection string, records ...strata.Record) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			id := rec.EnsureID()
			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("badgerstore: encode record: %w", err)
			}
			if err := txn.Set(recordKey(collection, id), value); err != nil {
				return fmt.Errorf("badgerstore: set record: %w", err)
			}
		}
		return nil
	})
}

func (b *Backend) Update(_ context.Context, collection string, filter strata.Filter, changes strata.Record) (int64, error) {
	var n int64
	err := b.db.Update(func(txn *badger.Txn) error {
		return b.scan(txn, collection, func(key []byte, rec strata.Record) error {
			if !filter.Matches(rec) {
				return nil
			}
			for path, value := range changes {
				rec.Set(path, value)
			}
			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("badgerstore: encode record: %w", err)
			}
			if err := txn.Set(append([]byte(nil), key...), value); err != nil {
				return err
			}
			n++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Backend) Remove(_ context.Context, collection string, filter strata.Filter) (int64, error) {
	var n int64
	err := b.db.Update(func(txn *badger.Txn) error {
		return b.scan(txn, collection, func(key []byte, rec strata.Record) error {
			if !filter.Matches(rec) {
				return nil
			}
			if err := txn.Delete(append([]byte(nil), key...)); err != nil {
				return err
			}
			n++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Backend) Upsert(_ context.Context, collection string, record strata.Record) error {
	id := record.EnsureID()
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("badgerstore: encode record: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(collection, id), value)
	})
}

// FindStream streams matching records through a producer goroutine holding a
// read transaction for the duration of the iteration. Closing the source
// cancels the producer and releases the transaction.
func (b *Backend) FindStream(ctx context.Context, collection string, filter strata.Filter) (strata.RecordSource, error) {
	src := strata.NewChannelSource(ctx, func(ctx context.Context, out chan<- strata.Record) error {
		return b.db.View(func(txn *badger.Txn) error {
			return b.scan(txn, collection, func(_ []byte, rec strata.Record) error {
				if !filter.Matches(rec) {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- rec:
					return nil
				}
			})
		})
	})
	return src, nil
}

func (b *Backend) Count(_ context.Context, collection string, filter strata.Filter) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		return b.scan(txn, collection, func(_ []byte, rec strata.Record) error {
			if filter.Matches(rec) {
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// scan iterates every record under the collection prefix, decoding values
// into fresh Record maps.
func (b *Backend) scan(txn *badger.Txn, collection string, fn func(key []byte, rec strata.Record) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = collectionPrefix(collection)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		err := item.Value(func(value []byte) error {
			var rec strata.Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("badgerstore: decode record %s: %w", item.Key(), err)
			}
			return fn(item.Key(), rec)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// badgerLoggerAdapter routes badger's internal log lines to a strata Logger.
type badgerLoggerAdapter struct {
	logger strata.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (l *badgerLoggerAdapter) Errorf(msg string, items ...any)   { l.logger.Errorf(msg, items...) }
func (l *badgerLoggerAdapter) Warningf(msg string, items ...any) { l.logger.Infof(msg, items...) }
func (l *badgerLoggerAdapter) Infof(msg string, items ...any)    { l.logger.Infof(msg, items...) }
func (l *badgerLoggerAdapter) Debugf(msg string, items ...any)   { l.logger.Debugf(msg, items...) }
