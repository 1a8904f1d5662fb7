package cmd

import (
	"os"

	"github.com/spigell/rfp-evaluator/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rfpsCmd = &cobra.Command{
	Use:   "rfps",
	Short: "List stored RFPs",
	Run: func(_ *cobra.Command, _ []string) {
		listRFPs()
	},
}

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List the proposals of a stored RFP, best scored first",
	Run: func(cmd *cobra.Command, _ []string) {
		listProposals(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rfpsCmd)
	rootCmd.AddCommand(proposalsCmd)

	proposalsCmd.Flags().Int64("rfp", 0, "id of the stored RFP")
	_ = proposalsCmd.MarkFlagRequired("rfp")
}

func listRFPs() {
	ctx, cancel := commandContext()
	defer cancel()

	log, config := setup()

	db, err := openStore(config, log)
	if err != nil {
		log.Fatal("opening the store", zap.Error(err))
	}
	defer db.Close()

	rfps, err := db.ListRFPs(ctx)
	if err != nil {
		log.Fatal("listing rfps", zap.Error(err))
	}

	if len(rfps) == 0 {
		log.Info("no rfps stored", zap.String("hint", "import a cohort file first"))
		return
	}

	opts, err := reportOptions(config.Output, true)
	if err != nil {
		log.Fatal("preparing the report", zap.Error(err))
	}
	if err := report.WriteRFPs(os.Stdout, rfps, opts); err != nil {
		log.Fatal("writing the report", zap.Error(err))
	}
}

func listProposals(cmd *cobra.Command) {
	ctx, cancel := commandContext()
	defer cancel()

	log, config := setup()

	rfpID, _ := cmd.Flags().GetInt64("rfp")

	db, err := openStore(config, log)
	if err != nil {
		log.Fatal("opening the store", zap.Error(err))
	}
	defer db.Close()

	if _, err := db.GetRFP(ctx, rfpID); err != nil {
		log.Fatal("getting rfp", zap.Int64("rfp_id", rfpID), zap.Error(err))
	}

	proposals, err := db.ListProposals(ctx, rfpID)
	if err != nil {
		log.Fatal("listing proposals", zap.Error(err))
	}

	opts, err := reportOptions(config.Output, true)
	if err != nil {
		log.Fatal("preparing the report", zap.Error(err))
	}
	if err := report.WriteProposals(os.Stdout, proposals, opts); err != nil {
		log.Fatal("writing the report", zap.Error(err))
	}
}
