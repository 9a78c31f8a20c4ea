package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/core"
	"github.com/spf13/cobra"
)

var (
	pickCatalogPath string
	pickConcurrency int
	pickTimeout     time.Duration
	pickVerbose     bool
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactively select examples to run",
	Long: `Load a catalog, present its examples for multi-selection, and run the
chosen ones. Setup examples of a selection are always included, so a
picked example never runs without its preconditions.`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)

	pickCmd.Flags().StringVar(&pickCatalogPath, "catalog", "", "Path to the catalog YAML file (required)")
	pickCmd.Flags().IntVar(&pickConcurrency, "concurrency", 1, "Number of examples to run in parallel")
	pickCmd.Flags().DurationVar(&pickTimeout, "timeout", 15*time.Minute, "Overall run timeout")
	pickCmd.Flags().BoolVar(&pickVerbose, "verbose", false, "Verbose output")
	_ = pickCmd.MarkFlagRequired("catalog")
}

func runPick(_ *cobra.Command, _ []string) error {
	log := newLogger(pickVerbose)

	cat, err := loadCatalog(log, pickCatalogPath, "")
	if err != nil {
		return err
	}

	choices := make([]string, 0, len(cat.Examples))
	for _, ex := range cat.Examples {
		choice := ex.ID
		if ex.Description != "" {
			choice = fmt.Sprintf("%s - %s", ex.ID, ex.Description)
		}
		choices = append(choices, choice)
	}

	var selected []core.OptionAnswer
	prompt := &survey.MultiSelect{
		Message:  "Which examples would you like to run?",
		Options:  choices,
		PageSize: 15,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return fmt.Errorf("selection aborted: %w", err)
	}

	if len(selected) == 0 {
		fmt.Println("Nothing selected.")
		return nil
	}

	ids := make([]string, 0, len(selected))
	for _, answer := range selected {
		ids = append(ids, cat.Examples[answer.Index].ID)
	}

	subset, err := cat.Select(ids)
	if err != nil {
		return err
	}

	os.Exit(executeCatalog(log, subset, pickConcurrency, pickTimeout, pickVerbose))

	return nil
}
