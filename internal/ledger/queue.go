package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// ScorePriority ranks a claim for human review. The score grows with the
// money at stake, how close the member is to a benefit ceiling and any
// AI signal that the claim is suspect.
func ScorePriority(c claims.ClaimRecord, m *claims.Member, currentYear int) Priority {
	var (
		score   int
		reasons []string
	)
	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	if c.Status == claims.Pending {
		add(20, "Awaiting review")
	}
	switch {
	case c.ClaimedAmount >= 200:
		add(30, fmt.Sprintf("High value claim (€%.2f)", c.ClaimedAmount))
	case c.ClaimedAmount >= 100:
		add(15, fmt.Sprintf("Moderate value claim (€%.2f)", c.ClaimedAmount))
	}
	if m.Usage.Scans >= 8 {
		add(25, fmt.Sprintf("Near scan limit (%d/10)", m.Usage.Scans))
	}
	if m.Usage.HospitalDays >= 35 {
		add(25, fmt.Sprintf("Near hospital day limit (%d/40)", m.Usage.HospitalDays))
	}
	if m.Usage.GPVisits >= 8 {
		add(15, fmt.Sprintf("Near GP visit limit (%d/10)", m.Usage.GPVisits))
	}
	if m.PolicyStart.Year() >= currentYear {
		add(20, "New policy (waiting period risk)")
	}
	if c.AIRecommendation == claims.Rejected {
		add(15, "AI recommended rejection")
	}
	if claims.HasFlag(c.AIFlags, claims.FlagDuplicate) {
		add(30, "Potential duplicate claim")
	}

	level := "LOW"
	switch {
	case score >= 50:
		level = "HIGH"
	case score >= 25:
		level = "MEDIUM"
	}
	if reasons == nil {
		reasons = []string{}
	}
	return Priority{Score: score, Level: level, Reasons: reasons}
}

// ListQueue returns every claim across members, highest priority first,
// newest treatment date breaking ties.
func (s *Store) ListQueue(ctx context.Context) ([]QueueItem, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	year := s.now().Year()
	items := []QueueItem{}
	for _, summary := range members {
		m, err := s.GetMember(ctx, summary.MemberID)
		if err != nil {
			return nil, err
		}
		for _, c := range m.Claims {
			items = append(items, QueueItem{
				ClaimRecord:       c,
				MemberID:          m.ID,
				MemberName:        m.FullName(),
				Scheme:            m.Scheme,
				PolicyStart:       m.PolicyStart,
				QuarterlyReceipts: m.Usage.QuarterlyReceipts,
				Priority:          ScorePriority(c, m, year),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority.Score != items[j].Priority.Score {
			return items[i].Priority.Score > items[j].Priority.Score
		}
		return items[i].TreatmentDate.After(items[j].TreatmentDate.Time)
	})
	return items, nil
}

// memberRisk scores usage proximity to annual ceilings, capped at 100.
func memberRisk(m *claims.Member, currentYear int) int {
	risk := 0
	if m.Usage.Scans >= 8 {
		risk += 30
	}
	if m.Usage.HospitalDays >= 35 {
		risk += 30
	}
	if m.Usage.GPVisits >= 8 {
		risk += 15
	}
	if m.Usage.QuarterlyReceipts >= 130 {
		risk += 10
	}
	if m.PolicyStart.Year() >= currentYear {
		risk += 15
	}
	return min(risk, 100)
}

// Analytics summarises claim outcomes and member risk across the book.
func (s *Store) Analytics(ctx context.Context) (*Analytics, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &Analytics{
		TotalMembers: len(members),
		ByStatus:     map[claims.Decision]int{},
		ByType:       map[claims.TreatmentType]int{},
		MemberRisk:   []MemberRisk{},
		GeneratedAt:  now.UTC(),
	}
	for _, summary := range members {
		m, err := s.GetMember(ctx, summary.MemberID)
		if err != nil {
			return nil, err
		}
		a.TotalClaims += len(m.Claims)
		for _, c := range m.Claims {
			a.ByStatus[c.Status]++
			if c.Status.Pays() {
				a.TotalPayout += c.ApprovedAmount
			}
			t := c.TreatmentType
			if strings.TrimSpace(string(t)) == "" {
				t = "Other"
			}
			a.ByType[t]++
		}
		a.MemberRisk = append(a.MemberRisk, MemberRisk{
			MemberID:   m.ID,
			MemberName: m.FullName(),
			RiskScore:  memberRisk(m, now.Year()),
			ClaimCount: len(m.Claims),
		})
	}

	sort.SliceStable(a.MemberRisk, func(i, j int) bool {
		return a.MemberRisk[i].RiskScore > a.MemberRisk[j].RiskScore
	})
	if len(a.MemberRisk) > 10 {
		a.MemberRisk = a.MemberRisk[:10]
	}
	return a, nil
}
