// Command initdb bootstraps a fresh data directory: it creates the
// meta database and its schema, then inserts the super-admin user
// (spec §6 "initdb -D <dataDir> -p <password>").
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/little-pan/sqlite-server/cfg"
	"github.com/little-pan/sqlite-server/metadb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var passwordFlag = flag.String("p", "", "super-admin password")

func main() {
	flag.Parse()

	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var writer io.Writer = zerolog.NewConsoleWriter()
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	if *passwordFlag == "" {
		log.Fatal().Msg("missing required -p <password> flag")
	}

	store, err := metadb.Open(cfg.MetaDbPath(), 5000)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open meta database")
	}
	defer store.Close()

	if err := store.BootstrapSuperuser("%", "admin", *passwordFlag, "sqlite-server"); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap super-admin")
	}

	// bootstrapID only ever appears in this log line: it gives an
	// operator a correlation id to grep for across a fleet's initdb runs,
	// it is never persisted to the user table.
	bootstrapID := uuid.New().String()
	log.Info().Str("data_dir", cfg.Config.DataDir).Str("bootstrap_id", bootstrapID).Msg("meta database initialized")
}
