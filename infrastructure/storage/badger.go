package storage

import (
	"github.com/dgraph-io/badger/v4"
)

// InMemoryOptions configure a badger store that keeps everything in RAM.
// It backs the degraded memory mode with the same keys as the durable store.
func InMemoryOptions() badger.Options {
	return badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
}

func OpenInMemory() (*badger.DB, error) {
	return badger.Open(InMemoryOptions())
}
