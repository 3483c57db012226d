// Standalone database bootstrap: applies the schema and loads the sample
// fixture into Postgres. Useful before first deploy or in CI.
//
// Usage: go run ./scripts [dsn]
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"crowdtrack-backend/pkg/store"
)

func main() {
	dsn := os.Getenv("POSTGRES_DSN")
	if len(os.Args) > 1 {
		dsn = os.Args[1]
	}
	if dsn == "" {
		log.Fatal("POSTGRES_DSN (or a dsn argument) is required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("connecting", zap.String("dsn", maskPassword(dsn)))
	s, err := store.NewPostgresStore(dsn, logger)
	if err != nil {
		logger.Fatal("connect and apply schema", zap.Error(err))
	}
	defer s.Close()

	if err := store.SeedSampleData(context.Background(), s); err != nil {
		logger.Fatal("seed sample data", zap.Error(err))
	}
	logger.Info("database ready")
}

// maskPassword hides the credential part of a DSN for logging.
func maskPassword(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at == -1 {
		return dsn
	}
	scheme := strings.Index(dsn, "://")
	if scheme == -1 {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
