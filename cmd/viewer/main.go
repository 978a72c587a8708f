package main

import (
	"chat-fanout/infrastructure/storage"
	"chat-fanout/internal"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
}

// The viewer browses the messages and users of a badger store, even while the
// server holds its lock.
func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	stats := func() map[string]any {
		lsm, vlog := db.Size()
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"LSM":    lsm,
			"VLog":   vlog,
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/inspect", internal.InspectHandler(db, storage.InspectMapper, stats))

	fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
	if err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", config.DebugPort), mux); err != nil {
		log.Printf("Viewer stopped: %v", err)
	}
}
