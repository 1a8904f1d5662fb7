package cmd

import (
	"os"

	"github.com/spigell/rfp-evaluator/internal/report"
	"github.com/spigell/rfp-evaluator/internal/rfp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <cohort-file>",
	Short: "Store an RFP, its vendors and their proposals from a cohort file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importCohort(args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importCohort(file string) {
	ctx, cancel := commandContext()
	defer cancel()

	log, config := setup()

	cohort, err := rfp.LoadCohortFile(file)
	if err != nil {
		log.Fatal("loading cohort file", zap.Error(err))
	}

	db, err := openStore(config, log)
	if err != nil {
		log.Fatal("opening the store", zap.Error(err))
	}
	defer db.Close()

	imported, err := db.ImportCohort(ctx, cohort)
	if err != nil {
		log.Fatal("importing cohort", zap.Error(err))
	}

	stored, err := db.ListProposals(ctx, imported.RFP.ID)
	if err != nil {
		log.Fatal("listing proposals", zap.Error(err))
	}

	opts, err := reportOptions(config.Output, true)
	if err != nil {
		log.Fatal("preparing the report", zap.Error(err))
	}
	if err := report.WriteRFPs(os.Stdout, []rfp.RFP{imported.RFP}, opts); err != nil {
		log.Fatal("writing the report", zap.Error(err))
	}
	if err := report.WriteProposals(os.Stdout, stored, opts); err != nil {
		log.Fatal("writing the report", zap.Error(err))
	}
}
