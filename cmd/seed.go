package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
	"github.com/ziadkadry99/claimdesk/internal/progress"
)

var seedPattern string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load member fixtures into the ledger",
	Long:  `Reads member YAML fixtures (doublestar glob, e.g. "testdata/**/*.yaml") and upserts every member, their usage and claim history into the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		members, err := ledger.LoadFixtures(seedPattern)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		reporter := progress.NewReporter("Seeding members")
		reporter.Start(len(members))
		for i, m := range members {
			if err := a.ledger.SaveMember(ctx, m); err != nil {
				reporter.Finish()
				return fmt.Errorf("saving member %s: %w", m.ID, err)
			}
			reporter.Update(i+1, m.ID)
		}
		reporter.Finish()

		if err := a.audit.Log(ctx, audit.Entry{
			ActorType: audit.ActorSystem,
			ActorID:   "seed",
			Action:    audit.ActionMembersSeeded,
			Summary:   fmt.Sprintf("Seeded %d member(s) from %s", len(members), seedPattern),
		}); err != nil {
			logger.Warn("audit log failed", zap.Error(err))
		}

		fmt.Printf("Seeded %d member(s) into %s\n", len(members), a.db.Path())
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPattern, "fixtures", "testdata/members/*.yaml", "glob of member fixture files")
	rootCmd.AddCommand(seedCmd)
}
