package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/evaluation"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/report"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/screening"
	"github.com/spigell/rfp-evaluator/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the proposals of an RFP and rank them against each other",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().Int64("rfp", 0, "id of a stored RFP to evaluate")
	evaluateCmd.Flags().StringP("file", "f", "", "cohort file (yaml or json) with an RFP and its proposals")
	evaluateCmd.Flags().Bool("persist", false, "import the cohort file and save the evaluation")
	evaluateCmd.Flags().Bool("dry-run", false, "evaluate without saving anything")
	evaluateCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before saving the evaluation")
	evaluateCmd.Flags().Bool("ranked", true, "list results by final score instead of input order")
	evaluateCmd.Flags().StringP("exclude-file", "e", "", "json file with vendors to exclude from the evaluation")

	viper.BindPFlag("evaluation.exclude-file", evaluateCmd.Flags().Lookup("exclude-file"))
}

// cohortSource is what a command evaluates: requirements, proposals and, when stored, the RFP id.
type cohortSource struct {
	rfpID        int64
	title        string
	requirements rfp.Requirements
	proposals    []rfp.Proposal
}

func evaluate(cmd *cobra.Command) {
	ctx, cancel := commandContext()
	defer cancel()

	log, config := setup()

	rfpID, _ := cmd.Flags().GetInt64("rfp")
	file, _ := cmd.Flags().GetString("file")
	persistFile, _ := cmd.Flags().GetBool("persist")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	ranked, _ := cmd.Flags().GetBool("ranked")

	if (rfpID == 0) == (strings.TrimSpace(file) == "") {
		log.Fatal("exactly one of --rfp or --file is required")
	}

	persist := (rfpID != 0 || persistFile) && !dryRun
	if dryRun && persistFile {
		log.Warn("ignoring --persist", zap.String("reason", "dry run"))
	}

	var db *store.Store
	if rfpID != 0 || persist {
		var err error
		db, err = openStore(config, log)
		if err != nil {
			log.Fatal("opening the store", zap.Error(err))
		}
		defer db.Close()
	}

	source, err := loadCohort(ctx, db, rfpID, file, persist)
	if err != nil {
		log.Fatal("loading proposals", zap.Error(err))
	}

	source.proposals, err = screen(config.Evaluation, log).Run(ctx, source.proposals)
	if err != nil {
		log.Fatal("screening proposals", zap.Error(err))
	}

	if len(source.proposals) == 0 {
		log.Info("exiting", zap.String("reason", "no proposals to evaluate"))
		return
	}

	generator, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		log.Fatal("building ai provider", zap.Error(err))
	}

	aiLogger := logger.WithCommonFields(log, config.AI.Provider, generator.Model())
	evaluator := evaluation.NewEvaluator(
		ai.NewExtractor(generator, config.AI.MaxLogLength, aiLogger),
		ai.NewScorer(generator, config.AI.MaxLogLength, aiLogger),
		evaluation.Options{
			Concurrency: config.Evaluation.Concurrency,
			CallTimeout: config.AI.CallTimeout,
		},
		logger.WithFields(aiLogger, zap.String(logger.FieldRFP, source.title)),
	)

	log.Info("starting the evaluation",
		zap.String("version", version),
		zap.String(logger.FieldRFP, source.title),
		zap.Int("proposals", len(source.proposals)),
	)

	run, err := evaluator.Evaluate(ctx, source.requirements, source.proposals)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var stageErr *evaluation.StageError
		if errors.As(err, &stageErr) {
			fields = append(fields, zap.String("stage", string(stageErr.Stage)))
		}
		log.Fatal("evaluation failed", fields...)
	}

	opts, err := reportOptions(config.Output, ranked)
	if err != nil {
		log.Fatal("preparing the report", zap.Error(err))
	}
	if err := report.WriteRun(os.Stdout, run, opts); err != nil {
		log.Fatal("writing the report", zap.Error(err))
	}

	if !persist {
		log.Info("evaluation is not saved", zap.String("hint", "evaluate a stored rfp or pass --persist"))
		return
	}

	if !autoApprove {
		ok, err := confirm(fmt.Sprintf("Save the scores of %d proposals?", len(run.Results)))
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}
		if !ok {
			log.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := db.SaveEvaluation(ctx, source.rfpID, run); err != nil {
		log.Fatal("saving the evaluation", zap.Error(err))
	}
}

// loadCohort reads the proposals either from the store or from a cohort file.
// With persist a cohort file is imported first so the evaluation can be saved against it.
func loadCohort(ctx context.Context, db *store.Store, rfpID int64, file string, persist bool) (cohortSource, error) {
	if rfpID != 0 {
		stored, err := db.GetRFP(ctx, rfpID)
		if err != nil {
			return cohortSource{}, err
		}
		proposals, err := db.Proposals(ctx, rfpID)
		if err != nil {
			return cohortSource{}, err
		}
		return cohortSource{rfpID: stored.ID, title: stored.Title, requirements: stored.Requirements, proposals: proposals}, nil
	}

	cohort, err := rfp.LoadCohortFile(file)
	if err != nil {
		return cohortSource{}, err
	}

	if !persist {
		return cohortSource{title: cohort.RFP.Title, requirements: cohort.RFP, proposals: cohort.ProposalList()}, nil
	}

	imported, err := db.ImportCohort(ctx, cohort)
	if err != nil {
		return cohortSource{}, err
	}
	return cohortSource{
		rfpID:        imported.RFP.ID,
		title:        imported.RFP.Title,
		requirements: imported.RFP.Requirements,
		proposals:    imported.Proposals,
	}, nil
}

// screen builds the filters every cohort passes before it is evaluated.
func screen(cfg *EvaluationConfig, log *zap.Logger) *screening.Screening {
	return screening.New([]screening.Filter{
		screening.NewMinimumText(cfg.MinProposalLength, log),
		screening.NewDuplicateVendors(log),
		screening.NewExcludedVendors(cfg.ExcludeVendors, log),
		screening.NewExcludeFile(cfg.ExcludeFile, log),
	}, log)
}

// confirm asks a yes/no question. Without a terminal on stdin it proceeds.
func confirm(label string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}

	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		return false, err
	}
	return answer == PromptYes, nil
}

func reportOptions(cfg *OutputConfig, ranked bool) (report.Options, error) {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return report.Options{}, err
	}

	var useColors bool
	switch strings.ToLower(strings.TrimSpace(cfg.Color)) {
	case "auto", "":
		useColors = term.IsTerminal(int(os.Stdout.Fd()))
	case "always":
		useColors = true
	case "never":
		useColors = false
	default:
		return report.Options{}, fmt.Errorf("unsupported output color %q (auto, always or never)", cfg.Color)
	}

	return report.Options{
		Format:    format,
		UseColors: useColors,
		Width:     cfg.Width,
		Ranked:    ranked,
	}, nil
}
