package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/claimdesk/internal/adjudication"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/progress"
)

var (
	processMember   string
	processMessage  string
	processDocument string
	processRole     string
	processSession  string
	processBatch    string
	processJSON     bool
	processTrace    bool
)

// batchClaim is one entry of a --batch file.
type batchClaim struct {
	MemberID  string           `yaml:"member_id"`
	Message   string           `yaml:"message"`
	Role      claims.Role      `yaml:"role"`
	SessionID string           `yaml:"session_id"`
	Document  *claims.Document `yaml:"claim_document"`
}

type batchFile struct {
	Claims []batchClaim `yaml:"claims"`
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Adjudicate a claim from the command line",
	Long: `Runs a single claim through the adjudication pipeline, or every claim in
a YAML batch file with --batch. The claim document may be given as a JSON or
YAML file; a message alone is enough when the details can be inferred.`,
	Example: `  claimdesk process --member MEM-1002 --message "GP visit yesterday, €60"
  claimdesk process --member MEM-1003 --document receipt.json --role operator
  claimdesk process --batch claims.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		if processBatch != "" {
			return runBatch(ctx, a.pipeline, processBatch)
		}

		if processMember == "" {
			return fmt.Errorf("--member is required (or use --batch)")
		}
		req := adjudication.Request{
			MemberID:  processMember,
			Message:   processMessage,
			Role:      claims.Role(processRole),
			SessionID: processSession,
		}
		if processDocument != "" {
			doc, err := readDocument(processDocument)
			if err != nil {
				return err
			}
			req.Document = doc
		}

		res, err := a.pipeline.ProcessClaim(ctx, req)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

func runBatch(ctx context.Context, pipeline *adjudication.Pipeline, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch %s: %w", path, err)
	}
	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parsing batch %s: %w", path, err)
	}
	if len(batch.Claims) == 0 {
		return fmt.Errorf("batch %s contains no claims", path)
	}

	reporter := progress.NewReporter("Adjudicating claims")
	reporter.Start(len(batch.Claims))

	results := make([]*adjudication.Result, 0, len(batch.Claims))
	tally := map[claims.Decision]int{}
	for i, c := range batch.Claims {
		res, err := pipeline.ProcessClaim(ctx, adjudication.Request{
			MemberID:  c.MemberID,
			Message:   c.Message,
			Role:      c.Role,
			SessionID: c.SessionID,
			Document:  c.Document,
		})
		if err != nil {
			logger.Warn("batch claim failed", zap.Int("index", i), zap.String("member_id", c.MemberID), zap.Error(err))
			reporter.Update(i+1, fmt.Sprintf("%s: error", c.MemberID))
			continue
		}
		results = append(results, res)
		tally[res.Decision]++
		reporter.Update(i+1, fmt.Sprintf("%s: %s", c.MemberID, res.Decision))
	}
	reporter.Finish()

	if processJSON {
		return writeJSONOut(results)
	}
	for _, res := range results {
		fmt.Printf("%-24s %-16s €%8.2f  %s\n", orDash(res.ClaimID), res.Decision, res.Payout, res.Route)
	}
	fmt.Println()
	for _, d := range []claims.Decision{claims.Approved, claims.PartiallyApproved, claims.Pending, claims.Rejected, claims.ActionRequired} {
		if n := tally[d]; n > 0 {
			fmt.Printf("%s: %d\n", d, n)
		}
	}
	if failed := len(batch.Claims) - len(results); failed > 0 {
		fmt.Printf("FAILED: %d\n", failed)
	}
	return nil
}

// readDocument loads a claim document from a JSON or YAML file.
func readDocument(path string) (*claims.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	var doc claims.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", path, err)
	}
	return &doc, nil
}

func printResult(res *adjudication.Result) error {
	if processJSON {
		return writeJSONOut(res)
	}
	fmt.Printf("Decision: %s\n", res.Decision)
	if res.AIRecommendation != "" && res.AIRecommendation != res.Decision {
		fmt.Printf("AI recommendation: %s\n", res.AIRecommendation)
	}
	fmt.Printf("Payout:   €%.2f\n", res.Payout)
	if res.ClaimID != "" {
		fmt.Printf("Claim:    %s\n", res.ClaimID)
	}
	fmt.Printf("Session:  %s\n", res.SessionID)
	if len(res.NeedsInfo) > 0 {
		fmt.Printf("Needs:    %s\n", strings.Join(res.NeedsInfo, ", "))
	}
	fmt.Printf("\n%s\n", res.Reasoning)
	if processTrace {
		fmt.Println("\nTrace:")
		for _, line := range res.Trace {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

func writeJSONOut(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	processCmd.Flags().StringVar(&processMember, "member", "", "member ID")
	processCmd.Flags().StringVar(&processMessage, "message", "", "free-text claim message")
	processCmd.Flags().StringVar(&processDocument, "document", "", "claim document file (JSON or YAML)")
	processCmd.Flags().StringVar(&processRole, "role", string(claims.RoleOperator), "submitter role: customer or operator")
	processCmd.Flags().StringVar(&processSession, "session", "", "conversation session ID")
	processCmd.Flags().StringVar(&processBatch, "batch", "", "YAML file of claims to process")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print results as JSON")
	processCmd.Flags().BoolVar(&processTrace, "trace", false, "print the agent trace")
	rootCmd.AddCommand(processCmd)
}
