package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
)

var reviewer string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work through the pending-claim review queue interactively",
	Long:  `Lists pending claims by priority and lets an operator approve, partially approve or reject each one. Approval applies the claim's deferred usage updates to the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(reviewer) == "" {
			return fmt.Errorf("--reviewer is required")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		for {
			items, err := a.ledger.ListQueue(ctx)
			if err != nil {
				return err
			}
			pending := pendingOnly(items)
			if len(pending) == 0 {
				fmt.Println("The review queue is empty.")
				return nil
			}

			labels := make([]string, 0, len(pending)+1)
			for _, it := range pending {
				labels = append(labels, fmt.Sprintf("[%s %3d] %s  %s  %s  €%.2f",
					it.Priority.Level, it.Priority.Score, it.ClaimID, it.MemberName, it.TreatmentType, it.ClaimedAmount))
			}
			labels = append(labels, "Quit")

			pick := promptui.Select{Label: "Pending claims", Items: labels, Size: 12}
			idx, _, err := pick.Run()
			if err != nil {
				return fmt.Errorf("claim selection: %w", err)
			}
			if idx == len(pending) {
				return nil
			}

			req, err := promptVerdict(pending[idx])
			if err != nil {
				return err
			}
			if req == nil {
				continue
			}

			res, err := a.ledger.Review(ctx, *req)
			if err != nil {
				fmt.Printf("Review failed: %v\n\n", err)
				continue
			}
			if err := ledger.RecordReview(ctx, a.audit, *req, res); err != nil {
				logger.Warn("audit log failed", zap.String("claim_id", req.ClaimID), zap.Error(err))
			}
			fmt.Printf("%s: %s -> %s, €%.2f", res.Claim.ClaimID, res.PreviousStatus, res.Claim.Status, res.Claim.ApprovedAmount)
			if len(res.Usage.Applied) > 0 {
				fmt.Printf(", %d usage update(s) applied", len(res.Usage.Applied))
			}
			fmt.Print("\n\n")
		}
	},
}

// promptVerdict shows the claim and asks for a verdict. A nil request
// means the operator skipped the claim.
func promptVerdict(it ledger.QueueItem) (*ledger.ReviewRequest, error) {
	fmt.Printf("\n%s for %s (%s)\n", it.ClaimID, it.MemberName, it.MemberID)
	fmt.Printf("  %s on %s at %s, €%.2f claimed\n", it.TreatmentType, it.TreatmentDate, orDash(it.PractitionerName), it.ClaimedAmount)
	if it.AIRecommendation != "" {
		fmt.Printf("  AI recommendation: %s (€%.2f)\n", it.AIRecommendation, it.AIPayout)
	}
	if it.AIReasoning != "" {
		fmt.Printf("  %s\n", it.AIReasoning)
	}
	if len(it.Priority.Reasons) > 0 {
		fmt.Printf("  Priority: %s\n", strings.Join(it.Priority.Reasons, "; "))
	}
	fmt.Println()

	verdicts := []claims.Decision{claims.Approved, claims.PartiallyApproved, claims.Rejected}
	sel := promptui.Select{
		Label: "Verdict",
		Items: []string{"Approve", "Partially approve", "Reject", "Skip"},
	}
	idx, _, err := sel.Run()
	if err != nil {
		return nil, fmt.Errorf("verdict selection: %w", err)
	}
	if idx == len(verdicts) {
		return nil, nil
	}

	req := &ledger.ReviewRequest{
		MemberID: it.MemberID,
		ClaimID:  it.ClaimID,
		Reviewer: reviewer,
		Status:   verdicts[idx],
	}

	if req.Status.Pays() {
		payoutPrompt := promptui.Prompt{
			Label:   "Payout (€)",
			Default: strconv.FormatFloat(it.AIPayout, 'f', 2, 64),
			Validate: func(s string) error {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("not a number")
				}
				if v < 0 {
					return fmt.Errorf("must be non-negative")
				}
				return nil
			},
		}
		raw, err := payoutPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("payout prompt: %w", err)
		}
		v, _ := strconv.ParseFloat(raw, 64)
		req.Payout = &v
	}

	notesPrompt := promptui.Prompt{Label: "Notes"}
	if req.Notes, err = notesPrompt.Run(); err != nil {
		return nil, fmt.Errorf("notes prompt: %w", err)
	}
	return req, nil
}

func pendingOnly(items []ledger.QueueItem) []ledger.QueueItem {
	var out []ledger.QueueItem
	for _, it := range items {
		if it.Status == claims.Pending && it.ReviewedBy == "" {
			out = append(out, it)
		}
	}
	return out
}

func init() {
	reviewCmd.Flags().StringVar(&reviewer, "reviewer", "", "operator ID recorded on each review")
	rootCmd.AddCommand(reviewCmd)
}
