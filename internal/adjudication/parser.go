package adjudication

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

type treatmentKeywords struct {
	typ      claims.TreatmentType
	patterns []*regexp.Regexp
}

func keywordPatterns(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`(?:s|es)?\b`))
	}
	return out
}

// Ordered: the first category with a matching keyword wins.
var treatmentTable = []treatmentKeywords{
	{claims.TreatmentGP, keywordPatterns("gp", "general practitioner", "doctor visit", "a&e", "a and e",
		"emergency room", "emergency department")},
	{claims.TreatmentConsultant, keywordPatterns("consultant", "specialist")},
	{claims.TreatmentPrescription, keywordPatterns("prescription", "pharmacy", "medication", "medicine", "drug")},
	{claims.TreatmentTherapy, keywordPatterns("physiotherapy", "physio", "reflexology", "acupuncture", "osteopathy",
		"osteopath", "chiropractor", "chiropractic", "physical therapy", "physical therapist", "therapy session",
		"day to day therapy", "reiki", "massage")},
	{claims.TreatmentDentalOptical, keywordPatterns("dental", "dentist", "teeth", "filling", "root canal", "optical",
		"optician", "eye test", "glasses", "contact lens", "eye exam")},
	{claims.TreatmentScan, keywordPatterns("scan", "mri", "ct scan", "x-ray", "xray", "x ray", "ultrasound",
		"imaging", "radiology")},
	{claims.TreatmentMaternity, keywordPatterns("maternity", "pregnancy", "baby", "birth", "newborn", "adoption",
		"pre-natal", "prenatal", "postnatal", "post-natal")},
	{claims.TreatmentHospital, keywordPatterns("hospital stay", "in-patient", "inpatient", "admission", "admitted",
		"ward", "surgery", "operation", "discharge", "hospital")},
}

var defaultCosts = map[claims.TreatmentType]float64{
	claims.TreatmentGP:            60,
	claims.TreatmentConsultant:    75,
	claims.TreatmentPrescription:  25,
	claims.TreatmentTherapy:       50,
	claims.TreatmentDentalOptical: 45,
	claims.TreatmentScan:          150,
	claims.TreatmentHospital:      100,
	claims.TreatmentMaternity:     1500,
}

const amount = `(\d+(?:\.\d{1,2})?)`

var costPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[€$£]\s*` + amount),
	regexp.MustCompile(`(?i)` + amount + `\s*(?:euros?|eur)\b`),
	regexp.MustCompile(`(?i)\beur\s*` + amount),
	regexp.MustCompile(`(?i)\bcost\s+(?:was|is|of)?\s*[€$£]?\s*` + amount),
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March, "april": time.April,
	"may": time.May, "june": time.June, "july": time.July, "august": time.August,
	"september": time.September, "october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|` +
	`jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var (
	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDate    = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	dayMonthDate = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b\.?(?:,?\s+(\d{4}))?`)
	monthYear    = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\b\.?\s+(\d{4})\b`)
	bareMonth    = regexp.MustCompile(`(?i)\b(?:in|from|during|on)\s+(january|february|march|april|june|july|august|september|october|november|december)\b`)
	monthsAgo    = regexp.MustCompile(`(?i)\b(\d+|one|two|three|four|five|six)\s+(day|week|month)s?\s+ago\b`)
)

var smallNumbers = map[string]int{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6}

var (
	doctorName   = regexp.MustCompile(`(?:\b[Dd][Rr]\.?|\b[Dd]octor)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z']+)?)`)
	facilityName = regexp.MustCompile(`\b(?i:at|from|in)\s+(?:(?i:the)\s+)?((?:[A-Z][\w'.]*\s+)+(?i:hospital|clinic|centre|center|pharmacy))\b`)
)

var hospitalDayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*-?\s*days?\s+(?:hospital\s+)?stay`),
	regexp.MustCompile(`(?i)(\d+)\s*-?\s*days?\s+(?:in|at)\s+(?:the\s+)?hospital`),
	regexp.MustCompile(`(?i)\bstay(?:ed)?\s+(?:for\s+)?(\d+)\s+(?:days?|nights?)`),
	regexp.MustCompile(`(?i)(\d+)\s+nights?\b`),
	regexp.MustCompile(`(?i)\badmi(?:ssion|tted)\s+(?:for\s+)?(\d+)\s+days?`),
	regexp.MustCompile(`(?i)(\d+)\s+days?\s+in\b`),
}

var (
	accidentWords  = regexp.MustCompile(`(?i)\b(?:accident|injury|injured|crash|collision)\b`)
	solicitorWords = regexp.MustCompile(`(?i)\b(?:solicitor|piab|lawyer|personal injur(?:y|ies))\b`)
)

// InferTreatmentType maps free text onto the treatment vocabulary, or ""
// when nothing matches.
func InferTreatmentType(message string) claims.TreatmentType {
	msg := html.UnescapeString(message)
	for _, row := range treatmentTable {
		for _, p := range row.patterns {
			if p.MatchString(msg) {
				return row.typ
			}
		}
	}
	return ""
}

// InferCost extracts the first monetary amount from the message.
func InferCost(message string) (float64, bool) {
	msg := html.UnescapeString(message)
	for _, p := range costPatterns {
		m := p.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// InferDate resolves explicit or relative dates against today. Unknown
// text yields today.
func InferDate(message string, today claims.Date) claims.Date {
	msg := html.UnescapeString(message)
	lower := strings.ToLower(msg)

	if m := isoDate.FindStringSubmatch(msg); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	if m := slashDate.FindStringSubmatch(msg); m != nil {
		if d, ok := makeDate(m[3], m[2], m[1]); ok {
			return d
		}
	}
	if m := dayMonthDate.FindStringSubmatch(msg); m != nil {
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		day, _ := strconv.Atoi(m[1])
		if d, ok := validDate(year, months[strings.ToLower(m[2])], day); ok {
			return d
		}
	}

	switch {
	case strings.Contains(lower, "yesterday"):
		return today.AddDays(-1)
	case strings.Contains(lower, "today"), strings.Contains(lower, "this morning"):
		return today
	case strings.Contains(lower, "last week"):
		return today.AddDays(-7)
	case strings.Contains(lower, "last month"):
		return today.AddDays(-30)
	}
	if m := monthsAgo.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = smallNumbers[m[1]]
		}
		switch m[2] {
		case "day":
			return today.AddDays(-n)
		case "week":
			return today.AddDays(-7 * n)
		case "month":
			return claims.NewDate(today.AddDate(0, -n, 0))
		}
	}

	if m := monthYear.FindStringSubmatch(msg); m != nil {
		year, _ := strconv.Atoi(m[2])
		if d, ok := validDate(year, months[strings.ToLower(m[1])], 15); ok {
			return d
		}
	}
	if m := bareMonth.FindStringSubmatch(msg); m != nil {
		if d, ok := validDate(today.Year(), months[strings.ToLower(m[1])], 15); ok {
			return d
		}
	}
	return today
}

func makeDate(y, m, d string) (claims.Date, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return validDate(year, time.Month(month), day)
}

// validDate rejects dates time.Date would silently normalise, like 31 June.
func validDate(year int, month time.Month, day int) (claims.Date, bool) {
	if month < time.January || month > time.December || day < 1 {
		return claims.Date{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month {
		return claims.Date{}, false
	}
	return claims.NewDate(t), true
}

// InferPractitioner finds "Dr. Name" or a named facility.
func InferPractitioner(message string) string {
	msg := html.UnescapeString(message)
	if m := doctorName.FindStringSubmatch(msg); m != nil {
		return "Dr. " + strings.TrimSpace(m[1])
	}
	if m := facilityName.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// InferHospitalDays extracts an in-patient stay length.
func InferHospitalDays(message string) int {
	msg := html.UnescapeString(message)
	for _, p := range hospitalDayPatterns {
		if m := p.FindStringSubmatch(msg); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// DocumentFromMessage fills in a claim document from free text. Fields
// already present on base are kept. It returns nil when no treatment type
// can be inferred and base is nil.
func DocumentFromMessage(message string, base *claims.Document, today claims.Date) *claims.Document {
	if base != nil && base.TreatmentType != "" {
		return base
	}
	typ := InferTreatmentType(message)
	if typ == "" {
		return base
	}

	doc := base.Clone()
	if doc == nil {
		doc = &claims.Document{}
	}
	doc.TreatmentType = typ
	if doc.FormType == "" {
		doc.FormType = claims.FormOutpatient
		if typ == claims.TreatmentMaternity {
			doc.FormType = claims.FormMaternity
		}
	}
	if doc.TreatmentDate.IsZero() {
		doc.TreatmentDate = InferDate(message, today)
	}
	if doc.SignaturePresent == nil {
		doc.SignaturePresent = claims.Bool(true)
	}
	if doc.TotalCost == 0 {
		if cost, ok := InferCost(message); ok {
			doc.TotalCost = cost
		} else {
			doc.TotalCost = defaultCosts[typ]
		}
	}
	if doc.PractitionerName == "" {
		doc.PractitionerName = InferPractitioner(message)
		if doc.PractitionerName == "" {
			doc.PractitionerName = "Not specified"
		}
	}
	if doc.HospitalDays == 0 && typ == claims.TreatmentHospital {
		doc.HospitalDays = InferHospitalDays(message)
	}
	msg := html.UnescapeString(message)
	if !doc.Accident && accidentWords.MatchString(msg) {
		doc.Accident = true
	}
	if !doc.SolicitorInvolved && solicitorWords.MatchString(msg) {
		doc.SolicitorInvolved = true
	}
	return doc
}
