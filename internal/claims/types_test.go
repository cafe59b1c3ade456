package claims

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseRouteClampsUnknown(t *testing.T) {
	assert.Equal(t, RouteHospital, ParseRoute(" Hospital "))
	assert.Equal(t, RouteExceptions, ParseRoute("exceptions"))
	assert.Equal(t, RouteOutpatient, ParseRoute("dental"))
	assert.Equal(t, RouteOutpatient, ParseRoute(""))
}

func TestParseDecision(t *testing.T) {
	d, ok := ParseDecision("partially approved")
	require.True(t, ok)
	assert.Equal(t, PartiallyApproved, d)

	d, ok = ParseDecision("Action Required")
	require.True(t, ok)
	assert.Equal(t, ActionRequired, d)

	_, ok = ParseDecision("escalated")
	assert.False(t, ok)
}

func TestDateJSON(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"treatment_type":"Scan Cover","treatment_date":"2026-02-20"}`), &doc))
	assert.Equal(t, "2026-02-20", doc.TreatmentDate.String())

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"treatment_date":"2026-02-20"`)

	assert.Error(t, json.Unmarshal([]byte(`{"treatment_date":"20/02/2026"}`), &doc))
}

func TestDateYAML(t *testing.T) {
	var m Member
	require.NoError(t, yaml.Unmarshal([]byte("member_id: MEM-1\npolicy_start_date: 2026-02-01\n"), &m))
	assert.Equal(t, "2026-02-01", m.PolicyStart.String())
	assert.Equal(t, 19, m.PolicyStart.DaysUntil(MustDate("2026-02-20")))
}

func TestDocumentSigned(t *testing.T) {
	doc := &Document{}
	assert.True(t, doc.Signed())
	doc.SignaturePresent = Bool(false)
	assert.False(t, doc.Signed())
}

func TestDocumentIsEmpty(t *testing.T) {
	var nilDoc *Document
	assert.True(t, nilDoc.IsEmpty())
	assert.True(t, (&Document{SignaturePresent: Bool(true)}).IsEmpty())
	assert.False(t, (&Document{TotalCost: 10}).IsEmpty())
}

func TestUsageCount(t *testing.T) {
	u := Usage{Scans: 10, HospitalDays: 38}
	assert.Equal(t, 10, u.Count(FieldScans))
	assert.Equal(t, 38, u.Count(FieldHospitalDays))
	assert.Equal(t, 0, u.Count(FieldQuarterlyReceipts))
}
