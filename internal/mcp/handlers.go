package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/adjudication"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
)

func (s *Server) handleProcessClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memberID, err := request.RequireString("member_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: member_id"), nil
	}

	req := adjudication.Request{
		MemberID:  memberID,
		Message:   request.GetString("message", ""),
		Role:      claims.Role(request.GetString("role", string(claims.RoleCustomer))),
		SessionID: request.GetString("session_id", ""),
	}
	if raw := request.GetString("claim_document", ""); raw != "" {
		var doc claims.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid claim_document: %v", err)), nil
		}
		req.Document = &doc
	}

	res, err := s.pipeline.ProcessClaim(ctx, req)
	if err != nil {
		if !adjudication.IsInputError(err) {
			s.logger.Error("process_claim failed", zap.String("member_id", memberID), zap.Error(err))
		}
		return mcp.NewToolResultError(fmt.Sprintf("processing failed: %v", err)), nil
	}
	s.logger.Debug("process_claim",
		zap.String("member_id", memberID),
		zap.String("claim_id", res.ClaimID),
		zap.String("decision", string(res.Decision)))
	return mcp.NewToolResultText(formatResult(res)), nil
}

func (s *Server) handleAskFollowUp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	res, err := s.pipeline.AnswerFollowUp(ctx, adjudication.Request{SessionID: sessionID, Message: question})
	if errors.Is(err, adjudication.ErrNoClaimContext) {
		return mcp.NewToolResultError("No claim has been decided in this session yet. Use process_claim first."), nil
	}
	if err != nil {
		if !adjudication.IsInputError(err) {
			s.logger.Error("ask_follow_up failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return mcp.NewToolResultError(fmt.Sprintf("follow-up failed: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Reasoning), nil
}

func (s *Server) handleGetMemberUsage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memberID, err := request.RequireString("member_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: member_id"), nil
	}

	m, err := s.members.GetMember(ctx, memberID)
	if errors.Is(err, ledger.ErrMemberNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No member found with ID %q.", memberID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading member: %v", err)), nil
	}
	return mcp.NewToolResultText(s.formatUsage(m)), nil
}

func (s *Server) handleListReviewQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	items, err := s.members.ListQueue(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading queue: %v", err)), nil
	}

	var pending []ledger.QueueItem
	for _, it := range items {
		if it.Status == claims.Pending {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return mcp.NewToolResultText("The review queue is empty."), nil
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return mcp.NewToolResultText(formatQueue(pending)), nil
}

// formatResult renders a decision for agent consumption.
func formatResult(res *adjudication.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Decision: %s\n", res.Decision))
	if res.AIRecommendation != "" && res.AIRecommendation != res.Decision {
		sb.WriteString(fmt.Sprintf("AI recommendation: %s\n", res.AIRecommendation))
	}
	sb.WriteString(fmt.Sprintf("Payout: €%.2f\n", res.Payout))
	if res.ClaimID != "" {
		sb.WriteString(fmt.Sprintf("Claim: %s\n", res.ClaimID))
	}
	if len(res.Flags) > 0 {
		flags := make([]string, len(res.Flags))
		for i, f := range res.Flags {
			flags[i] = string(f)
		}
		sb.WriteString(fmt.Sprintf("Flags: %s\n", strings.Join(flags, ", ")))
	}
	if len(res.NeedsInfo) > 0 {
		sb.WriteString(fmt.Sprintf("Needs: %s\n", strings.Join(res.NeedsInfo, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Session: %s\n\n", res.SessionID))
	sb.WriteString(res.Reasoning)
	sb.WriteString("\n\nTrace:\n")
	for _, line := range res.Trace {
		sb.WriteString("  - " + line + "\n")
	}
	return sb.String()
}

func (s *Server) formatUsage(m *claims.Member) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s), %s, policy start %s\n\n", m.FullName(), m.ID, m.Scheme, m.PolicyStart))
	for _, f := range []claims.Field{
		claims.FieldGPVisits, claims.FieldConsultantVisits, claims.FieldPrescriptions,
		claims.FieldDentalOptical, claims.FieldTherapySessions, claims.FieldScans, claims.FieldHospitalDays,
	} {
		sb.WriteString(fmt.Sprintf("%-18s %d/%d\n", f, m.Usage.Count(f), s.limits[f]))
	}
	sb.WriteString(fmt.Sprintf("%-18s €%.2f\n", "quarterly_receipts", m.Usage.QuarterlyReceipts))
	sb.WriteString(fmt.Sprintf("%-18s %t\n", claims.FieldMaternityClaimed, m.Usage.MaternityClaimed))

	if n := len(m.Claims); n > 0 {
		sb.WriteString("\nRecent claims:\n")
		recent := m.Claims
		if n > 5 {
			recent = recent[n-5:]
		}
		for _, c := range recent {
			sb.WriteString(fmt.Sprintf("  %s  %s  %s  €%.2f  %s\n",
				c.ClaimID, c.TreatmentDate, c.TreatmentType, c.ClaimedAmount, c.Status))
		}
	}
	return sb.String()
}

func formatQueue(items []ledger.QueueItem) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d claim(s) awaiting review:\n", len(items)))
	for i, it := range items {
		sb.WriteString(fmt.Sprintf("\n--- %d. %s [%s, score %d] ---\n", i+1, it.ClaimID, it.Priority.Level, it.Priority.Score))
		sb.WriteString(fmt.Sprintf("Member: %s (%s)\n", it.MemberName, it.MemberID))
		sb.WriteString(fmt.Sprintf("Treatment: %s on %s, €%.2f claimed\n", it.TreatmentType, it.TreatmentDate, it.ClaimedAmount))
		if it.AIRecommendation != "" {
			sb.WriteString(fmt.Sprintf("AI recommendation: %s (€%.2f)\n", it.AIRecommendation, it.AIPayout))
		}
		if len(it.Priority.Reasons) > 0 {
			sb.WriteString(fmt.Sprintf("Why: %s\n", strings.Join(it.Priority.Reasons, "; ")))
		}
	}
	return sb.String()
}
