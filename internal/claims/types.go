// Package claims defines the domain vocabulary shared by the ledger, the
// session store and the adjudication pipeline.
package claims

import (
	"strings"
	"time"
)

// Decision is the outcome of adjudicating a claim.
type Decision string

const (
	Approved          Decision = "APPROVED"
	Rejected          Decision = "REJECTED"
	PartiallyApproved Decision = "PARTIALLY_APPROVED"
	Pending           Decision = "PENDING"
	ActionRequired    Decision = "ACTION_REQUIRED"
)

// Pays reports whether the decision releases money and therefore consumes
// benefit usage.
func (d Decision) Pays() bool {
	return d == Approved || d == PartiallyApproved
}

// ParseDecision normalises free-form status strings ("partially approved",
// "Action Required") into a Decision.
func ParseDecision(s string) (Decision, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch Decision(norm) {
	case Approved, Rejected, PartiallyApproved, Pending, ActionRequired:
		return Decision(norm), true
	}
	return "", false
}

// Flag marks a claim for special handling downstream.
type Flag string

const (
	FlagPendingThreshold Flag = "PENDING_THRESHOLD"
	FlagDuplicate        Flag = "DUPLICATE"
	FlagMaternityUpdate  Flag = "MATERNITY_DB_UPDATE"
	FlagLegalReview      Flag = "LEGAL_REVIEW"
)

// HasFlag reports whether flags contains f.
func HasFlag(flags []Flag, f Flag) bool {
	for _, x := range flags {
		if x == f {
			return true
		}
	}
	return false
}

// TreatmentType is the benefit category vocabulary.
type TreatmentType string

const (
	TreatmentGP            TreatmentType = "GP & A&E"
	TreatmentConsultant    TreatmentType = "Consultant Fee"
	TreatmentPrescription  TreatmentType = "Prescription"
	TreatmentTherapy       TreatmentType = "Day to Day Therapy"
	TreatmentDentalOptical TreatmentType = "Dental & Optical"
	TreatmentScan          TreatmentType = "Scan Cover"
	TreatmentHospital      TreatmentType = "Hospital In-patient"
	TreatmentMaternity     TreatmentType = "Maternity Cash Back"
)

// IsMaternity reports whether the type names a maternity or adoption benefit.
func (t TreatmentType) IsMaternity() bool {
	s := strings.ToLower(string(t))
	return strings.Contains(s, "maternity") || strings.Contains(s, "adoption")
}

// Field names a counter in the usage ledger.
type Field string

const (
	FieldGPVisits          Field = "gp_visits"
	FieldConsultantVisits  Field = "consultant_visits"
	FieldPrescriptions     Field = "prescriptions"
	FieldDentalOptical     Field = "dental_optical"
	FieldTherapySessions   Field = "therapy_sessions"
	FieldScans             Field = "scans"
	FieldHospitalDays      Field = "hospital_days"
	FieldQuarterlyReceipts Field = "quarterly_accumulated_receipts"
	FieldMaternityClaimed  Field = "maternity_claimed"
)

// Role is the kind of actor submitting a claim.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// Route selects a treatment processor.
type Route string

const (
	RouteOutpatient Route = "outpatient"
	RouteHospital   Route = "hospital"
	RouteExceptions Route = "exceptions"
)

// ParseRoute clamps any value to the route vocabulary; unknown values
// become RouteOutpatient.
func ParseRoute(s string) Route {
	switch r := Route(strings.ToLower(strings.TrimSpace(s))); r {
	case RouteOutpatient, RouteHospital, RouteExceptions:
		return r
	}
	return RouteOutpatient
}

// Usage is a member's benefit consumption for the current policy year.
type Usage struct {
	GPVisits          int     `json:"gp_visits" yaml:"gp_visits"`
	ConsultantVisits  int     `json:"consultant_visits" yaml:"consultant_visits"`
	Prescriptions     int     `json:"prescriptions" yaml:"prescriptions"`
	DentalOptical     int     `json:"dental_optical" yaml:"dental_optical"`
	TherapySessions   int     `json:"therapy_sessions" yaml:"therapy_sessions"`
	Scans             int     `json:"scans" yaml:"scans"`
	HospitalDays      int     `json:"hospital_days" yaml:"hospital_days"`
	QuarterlyReceipts float64 `json:"quarterly_accumulated_receipts" yaml:"quarterly_accumulated_receipts"`
	MaternityClaimed  bool    `json:"maternity_claimed" yaml:"maternity_claimed"`
}

// Count returns the integer counter for f, or 0 for non-counter fields.
func (u Usage) Count(f Field) int {
	switch f {
	case FieldGPVisits:
		return u.GPVisits
	case FieldConsultantVisits:
		return u.ConsultantVisits
	case FieldPrescriptions:
		return u.Prescriptions
	case FieldDentalOptical:
		return u.DentalOptical
	case FieldTherapySessions:
		return u.TherapySessions
	case FieldScans:
		return u.Scans
	case FieldHospitalDays:
		return u.HospitalDays
	}
	return 0
}

// Member is a policy holder together with their ledger and claim history.
type Member struct {
	ID          string        `json:"member_id" yaml:"member_id"`
	FirstName   string        `json:"first_name" yaml:"first_name"`
	LastName    string        `json:"last_name" yaml:"last_name"`
	Email       string        `json:"email,omitempty" yaml:"email"`
	Scheme      string        `json:"scheme_name" yaml:"scheme_name"`
	PolicyStart Date          `json:"policy_start_date" yaml:"policy_start_date"`
	Status      string        `json:"status" yaml:"status"`
	Usage       Usage         `json:"current_year_usage" yaml:"current_year_usage"`
	Claims      []ClaimRecord `json:"claims_history" yaml:"claims_history"`
}

// FullName returns "First Last".
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// DeferredUpdate is a ledger mutation computed at decision time but held
// until a review step approves the claim.
type DeferredUpdate struct {
	Field     Field   `json:"field" yaml:"field"`
	Increment float64 `json:"increment" yaml:"increment"`
}

// ClaimRecord is an immutable history entry for an adjudicated claim.
// Only the review fields and the deferred list change after creation.
type ClaimRecord struct {
	ClaimID          string           `json:"claim_id" yaml:"claim_id"`
	TreatmentType    TreatmentType    `json:"treatment_type" yaml:"treatment_type"`
	TreatmentDate    Date             `json:"treatment_date" yaml:"treatment_date"`
	PractitionerName string           `json:"practitioner_name" yaml:"practitioner_name"`
	ClaimedAmount    float64          `json:"claimed_amount" yaml:"claimed_amount"`
	ApprovedAmount   float64          `json:"approved_amount" yaml:"approved_amount"`
	Status           Decision         `json:"status" yaml:"status"`
	SubmittedDate    Date             `json:"submitted_date" yaml:"submitted_date"`
	AIRecommendation Decision         `json:"ai_recommendation,omitempty" yaml:"ai_recommendation"`
	AIReasoning      string           `json:"ai_reasoning,omitempty" yaml:"ai_reasoning"`
	AIConfidence     float64          `json:"ai_confidence,omitempty" yaml:"ai_confidence"`
	AIPayout         float64          `json:"ai_payout_amount" yaml:"ai_payout_amount"`
	AIFlags          []Flag           `json:"ai_flags,omitempty" yaml:"ai_flags"`
	DeferredUpdates  []DeferredUpdate `json:"deferred_usage_updates" yaml:"deferred_usage_updates"`
	ReviewedBy       string           `json:"reviewed_by,omitempty" yaml:"reviewed_by"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty" yaml:"reviewed_at"`
	ReviewerNotes    string           `json:"reviewer_notes,omitempty" yaml:"reviewer_notes"`
}
