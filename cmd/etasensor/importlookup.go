package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"etasensor/internal/gtfs"
	"etasensor/internal/lookup"
	"etasensor/internal/storage"
)

var importForce bool

var importLookupCmd = &cobra.Command{
	Use:   "import-lookup",
	Short: "Download the static GTFS feed and import stop and route names",
	Long: `import-lookup fetches the static GTFS zip, reads routes.txt, stops.txt and
directions.txt and replaces the contents of the lookup database. The download
is skipped when the feed has not changed since the last import, unless --force
is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		if cfg.GTFSURL == "" {
			return errors.New("no GTFS url configured (ETA_GTFS_URL)")
		}

		db, err := storage.Open(cfg.LookupDB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		syncer := gtfs.NewSyncer(gtfs.NewDownloader(cfg.GTFSURL, cfg.GTFSDir, logger), db, logger)
		imported, err := syncer.Sync(ctx, importForce)
		if err != nil {
			return fmt.Errorf("import lookup: %w", err)
		}
		if !imported {
			logger.Info("lookup data is current, nothing imported")
			return nil
		}

		table, err := lookup.FromDB(ctx, db)
		if err != nil {
			return err
		}
		stops, routes := table.Len()
		logger.Info("lookup import complete", "stop_names", stops, "routes", routes, "path", cfg.LookupDB)
		return nil
	},
}

func init() {
	importLookupCmd.Flags().BoolVar(&importForce, "force", false, "import even if the feed is unchanged")
	importLookupCmd.Flags().StringVar(&cfg.LookupDB, "db", cfg.LookupDB, "lookup database path")
}
