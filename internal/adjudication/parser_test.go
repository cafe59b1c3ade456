package adjudication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

func TestInferTreatmentType(t *testing.T) {
	tests := []struct {
		msg  string
		want claims.TreatmentType
	}{
		{"I went to my GP on Monday", claims.TreatmentGP},
		{"Trip to A&amp;E after a fall", claims.TreatmentGP},
		{"Saw a consultant about my knee", claims.TreatmentConsultant},
		{"Picked up my prescriptions", claims.TreatmentPrescription},
		{"Two physio sessions", claims.TreatmentTherapy},
		{"New glasses from the optician", claims.TreatmentDentalOptical},
		{"MRI scan at Beacon Hospital", claims.TreatmentScan},
		{"Pre-natal checkup", claims.TreatmentMaternity},
		{"Stayed in hospital for 3 nights", claims.TreatmentHospital},
		{"hello there", ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTreatmentType(tt.msg))
		})
	}
}

func TestInferCost(t *testing.T) {
	for msg, want := range map[string]float64{
		"it was €60":            60,
		"paid 45.50 euro":       45.5,
		"EUR 120 for the scan":  120,
		"the cost was 75":       75,
		"dentist bill: $ 80.25": 80.25,
	} {
		got, ok := InferCost(msg)
		require.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}

	_, ok := InferCost("no money mentioned")
	assert.False(t, ok)
}

func TestInferDate(t *testing.T) {
	today := claims.MustDate("2026-06-15")
	tests := map[string]string{
		"on 2026-05-03":               "2026-05-03",
		"on 03/05/2026":               "2026-05-03",
		"on the 15th of January 2026": "2026-01-15",
		"on 2 March":                  "2026-03-02",
		"yesterday":                   "2026-06-14",
		"last week":                   "2026-06-08",
		"two weeks ago":               "2026-06-01",
		"3 months ago":                "2026-03-15",
		"back in April 2026":          "2026-04-15",
		"in February":                 "2026-02-15",
		"I may have lost the receipt": "2026-06-15",
		"on 31/06/2026":               "2026-06-15",
	}
	for msg, want := range tests {
		assert.Equal(t, want, InferDate(msg, today).String(), msg)
	}
}

func TestInferPractitioner(t *testing.T) {
	assert.Equal(t, "Dr. Mary Walsh", InferPractitioner("saw Dr. Mary Walsh today"))
	assert.Equal(t, "Dr. Kelly", InferPractitioner("my doctor Kelly said"))
	assert.Equal(t, "Beacon Hospital", InferPractitioner("a scan at Beacon Hospital"))
	assert.Equal(t, "", InferPractitioner("nothing here"))
}

func TestInferHospitalDays(t *testing.T) {
	assert.Equal(t, 5, InferHospitalDays("a 5 day hospital stay"))
	assert.Equal(t, 3, InferHospitalDays("stayed for 3 nights"))
	assert.Equal(t, 0, InferHospitalDays("no stay"))
}

func TestDocumentFromMessage(t *testing.T) {
	today := claims.MustDate("2026-06-15")

	doc := DocumentFromMessage("Physio with Dr. Anne Byrne yesterday", nil, today)
	require.NotNil(t, doc)
	assert.Equal(t, claims.TreatmentTherapy, doc.TreatmentType)
	assert.Equal(t, claims.FormOutpatient, doc.FormType)
	assert.Equal(t, "2026-06-14", doc.TreatmentDate.String())
	assert.Equal(t, 50.0, doc.TotalCost, "default cost")
	assert.Equal(t, "Dr. Anne Byrne", doc.PractitionerName)
	assert.True(t, doc.Signed())

	doc = DocumentFromMessage("Baby born last week, bill was €900", nil, today)
	require.NotNil(t, doc)
	assert.Equal(t, claims.TreatmentMaternity, doc.TreatmentType)
	assert.Equal(t, claims.FormMaternity, doc.FormType)
	assert.Equal(t, 900.0, doc.TotalCost)
	assert.Equal(t, "Not specified", doc.PractitionerName)

	doc = DocumentFromMessage("GP visit after a car accident, my solicitor has the file", nil, today)
	require.NotNil(t, doc)
	assert.True(t, doc.Accident)
	assert.True(t, doc.SolicitorInvolved)

	assert.Nil(t, DocumentFromMessage("hello", nil, today))

	base := &claims.Document{TreatmentType: claims.TreatmentScan, TotalCost: 10}
	assert.Same(t, base, DocumentFromMessage("GP visit €60", base, today), "a typed document is kept as is")
}
