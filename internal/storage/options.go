package storage

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Options sizes the catalog database. The defaults badger ships with are
// tuned for servers; a repository catalog holds a few small values per object.
type Options struct {
	InMemory           bool
	ValueLogFileSizeMB int64
	MemTableSizeMB     int64
}

func dbOptions(path string, o Options) badger.Options {
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(nil) // Disable logging noise

	if o.ValueLogFileSizeMB > 0 {
		opts = opts.WithValueLogFileSize(o.ValueLogFileSizeMB << 20)
	}
	if o.MemTableSizeMB > 0 {
		opts = opts.WithMemTableSize(o.MemTableSizeMB << 20)
	}
	if o.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	return opts
}

// Open opens (creating if needed) the database at path.
func Open(path string, o Options) (*badger.DB, error) {
	if !o.InMemory {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := badger.Open(dbOptions(path, o))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
