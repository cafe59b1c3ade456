// Package rules holds the pure benefit calculators. Nothing here touches
// storage; callers pass in snapshots and receive verdicts.
package rules

import (
	"math"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// Policy carries the scheme constants the calculators depend on.
type Policy struct {
	WaitingPeriodDays    int
	SubmissionWindowDays int
	QuarterlyThreshold   float64
	PrivateInvoiceCutoff float64
	MaxHospitalDays      int
	HospitalDailyRate    float64
	MaternityPayout      float64
	DefaultPayoutCap     float64
}

// DefaultPolicy returns the Money Smart 20 scheme constants.
func DefaultPolicy() Policy {
	return Policy{
		WaitingPeriodDays:    84,
		SubmissionWindowDays: 365,
		QuarterlyThreshold:   150,
		PrivateInvoiceCutoff: 1000,
		MaxHospitalDays:      40,
		HospitalDailyRate:    20,
		MaternityPayout:      200,
		DefaultPayoutCap:     20,
	}
}

// Benefit is one row of the outpatient limit table.
type Benefit struct {
	Field     claims.Field
	AnnualMax int
	PayoutCap float64
}

var outpatientBenefits = map[claims.TreatmentType]Benefit{
	claims.TreatmentGP:            {Field: claims.FieldGPVisits, AnnualMax: 10, PayoutCap: 20},
	claims.TreatmentConsultant:    {Field: claims.FieldConsultantVisits, AnnualMax: 10, PayoutCap: 20},
	claims.TreatmentPrescription:  {Field: claims.FieldPrescriptions, AnnualMax: 4, PayoutCap: 10},
	claims.TreatmentTherapy:       {Field: claims.FieldTherapySessions, AnnualMax: 10, PayoutCap: 20},
	claims.TreatmentDentalOptical: {Field: claims.FieldDentalOptical, AnnualMax: 10, PayoutCap: 20},
	claims.TreatmentScan:          {Field: claims.FieldScans, AnnualMax: 10, PayoutCap: 20},
}

// OutpatientBenefit looks up the limit row for an outpatient category.
func OutpatientBenefit(t claims.TreatmentType) (Benefit, bool) {
	b, ok := outpatientBenefits[t]
	return b, ok
}

// AnnualMaximums returns the per-field ceiling the ledger must never exceed.
func (p Policy) AnnualMaximums() map[claims.Field]int {
	limits := make(map[claims.Field]int, len(outpatientBenefits)+1)
	for _, b := range outpatientBenefits {
		limits[b.Field] = b.AnnualMax
	}
	limits[claims.FieldHospitalDays] = p.MaxHospitalDays
	return limits
}

// WaitingPeriodResult describes the new-member waiting period check.
type WaitingPeriodResult struct {
	Blocked       bool
	EligibleFrom  claims.Date
	DaysRemaining int
}

// WaitingPeriod blocks treatment dated before policyStart + WaitingPeriodDays.
// The end date itself is eligible.
func (p Policy) WaitingPeriod(policyStart, treatment claims.Date) WaitingPeriodResult {
	eligible := policyStart.AddDays(p.WaitingPeriodDays)
	if treatment.Before(eligible.Time) {
		return WaitingPeriodResult{
			Blocked:       true,
			EligibleFrom:  eligible,
			DaysRemaining: treatment.DaysUntil(eligible),
		}
	}
	return WaitingPeriodResult{EligibleFrom: eligible}
}

// SubmissionDeadline reports whether today is past treatment + window and
// returns the deadline.
func (p Policy) SubmissionDeadline(treatment, today claims.Date) (expired bool, deadline claims.Date) {
	deadline = treatment.AddDays(p.SubmissionWindowDays)
	return today.After(deadline.Time), deadline
}

// Threshold computes the quarterly receipts total after this claim and
// whether it reaches the release threshold.
func (p Policy) Threshold(accumulated, claimed float64) (newTotal float64, crossed bool) {
	newTotal = accumulated + claimed
	return newTotal, newTotal >= p.QuarterlyThreshold
}

// FindDuplicate returns the first history entry with the same treatment
// date, the same practitioner ignoring case, and an amount within one cent.
func FindDuplicate(history []claims.ClaimRecord, date claims.Date, practitioner string, amount float64) (claims.ClaimRecord, bool) {
	for _, c := range history {
		if !c.TreatmentDate.Equal(date.Time) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(c.PractitionerName), strings.TrimSpace(practitioner)) {
			continue
		}
		if math.Abs(c.ClaimedAmount-amount) < 0.01 {
			return c, true
		}
	}
	return claims.ClaimRecord{}, false
}

// WithinLimit reports whether another unit fits under the annual maximum.
func WithinLimit(current, limit int) (remaining int, ok bool) {
	remaining = limit - current
	if remaining < 0 {
		remaining = 0
	}
	return remaining, current < limit
}

// HospitalDays is the verdict of the in-patient day calculator.
type HospitalDays struct {
	Requested int
	Available int
	Approved  int
	Rejected  int
	Payout    float64
}

// HospitalPayout approves as many requested days as remain under the
// annual maximum and pays the daily rate for each.
func (p Policy) HospitalPayout(requested, used int) HospitalDays {
	available := p.MaxHospitalDays - used
	if available < 0 {
		available = 0
	}
	approved := min(requested, available)
	if approved < 0 {
		approved = 0
	}
	return HospitalDays{
		Requested: requested,
		Available: available,
		Approved:  approved,
		Rejected:  requested - approved,
		Payout:    float64(approved) * p.HospitalDailyRate,
	}
}

var therapyAllowList = []string{
	"physiotherapy",
	"reflexology",
	"acupuncture",
	"osteopathy",
	"physical therapist",
	"physical therapy",
	"chiropractor",
	"chiropractic",
}

// ValidTherapy reports whether label names a covered therapy. A match in
// either direction counts, so "PhysioFirst Physiotherapy Clinic" and
// "physio" are both judged against the list.
func ValidTherapy(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	for _, t := range therapyAllowList {
		if strings.Contains(l, t) || strings.Contains(t, l) {
			return true
		}
	}
	return false
}

// Cap returns min(claimed, cap), never negative.
func Cap(claimed, cap float64) float64 {
	if claimed < 0 {
		return 0
	}
	return math.Min(claimed, cap)
}

// CapClaimed limits a computed payout to the amount actually claimed when
// one was stated.
func CapClaimed(payout, claimed float64) float64 {
	if claimed > 0 && payout > claimed {
		return claimed
	}
	return payout
}

// Round2 rounds a currency amount to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
