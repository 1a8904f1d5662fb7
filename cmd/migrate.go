package cmd

import (
	"github.com/spigell/rfp-evaluator/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the database schema",
	Run: func(cmd *cobra.Command, _ []string) {
		migrateSchema(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Int("version", store.LatestVersion, "target schema version, -1 for the latest and 0 to roll everything back")
}

func migrateSchema(cmd *cobra.Command) {
	log, config := setup()

	target, _ := cmd.Flags().GetInt("version")

	// the target version is applied explicitly below
	config.Store.AutoMigrate = false
	db, err := openStore(config, log)
	if err != nil {
		log.Fatal("opening the store", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(target); err != nil {
		log.Fatal("migrating the schema", zap.Error(err))
	}
}
