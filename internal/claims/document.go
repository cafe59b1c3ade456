package claims

import "strings"

// Default form names recognised by the intake checks.
const (
	FormOutpatient = "Money Smart Out-patient Claim Form"
	// FormHospital is the hospital and surgical form. Its printed title is
	// misleadingly "General Practitioner Claim Form".
	FormHospital  = "General Practitioner Claim Form"
	FormMaternity = "Pre/Post-Natal Claim Form"
)

// Document is the extracted content of a claim form or receipt.
type Document struct {
	FormType                string        `json:"form_type,omitempty" yaml:"form_type"`
	TreatmentType           TreatmentType `json:"treatment_type" yaml:"treatment_type"`
	TreatmentDate           Date          `json:"treatment_date" yaml:"treatment_date"`
	PractitionerName        string        `json:"practitioner_name" yaml:"practitioner_name"`
	TotalCost               float64       `json:"total_cost" yaml:"total_cost"`
	SignaturePresent        *bool         `json:"signature_present,omitempty" yaml:"signature_present"`
	ProcedureCode           string        `json:"procedure_code,omitempty" yaml:"procedure_code"`
	ClinicalIndicator       string        `json:"clinical_indicator,omitempty" yaml:"clinical_indicator"`
	HospitalDays            int           `json:"hospital_days,omitempty" yaml:"hospital_days"`
	HistologyReportAttached bool          `json:"histology_report_attached,omitempty" yaml:"histology_report_attached"`
	SerumFerritinProvided   bool          `json:"serum_ferritin_provided,omitempty" yaml:"serum_ferritin_provided"`
	Accident                bool          `json:"accident,omitempty" yaml:"accident"`
	SolicitorInvolved       bool          `json:"solicitor_involved,omitempty" yaml:"solicitor_involved"`
}

// Signed reports whether the claimant signed the form. An absent flag is
// treated as signed.
func (d *Document) Signed() bool {
	return d.SignaturePresent == nil || *d.SignaturePresent
}

// IsEmpty reports whether the document carries no usable content.
func (d *Document) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.TreatmentType == "" && d.FormType == "" && d.PractitionerName == "" &&
		d.TotalCost == 0 && d.TreatmentDate.IsZero() && d.ProcedureCode == "" && d.HospitalDays == 0
}

// IsMaternity reports whether the document claims the maternity benefit,
// either by form or by treatment type.
func (d *Document) IsMaternity() bool {
	return strings.Contains(d.FormType, "Pre/Post-Natal") || d.TreatmentType.IsMaternity()
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.SignaturePresent != nil {
		v := *d.SignaturePresent
		c.SignaturePresent = &v
	}
	return &c
}

// Bool returns a pointer to v, for optional document flags.
func Bool(v bool) *bool { return &v }
