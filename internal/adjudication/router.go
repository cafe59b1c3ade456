package adjudication

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

var (
	exceptionWords = regexp.MustCompile(`(?i)\b(maternity|adoption|adopt(ed|ing)?|accident|solicitor|fraud)\b`)
	hospitalWords  = regexp.MustCompile(`(?i)\b(hospital|in-?patient|admitted|admission|surgery|surgical|overnight|ward|procedure)\b`)
)

// Classify picks the treatment processor for a document and message. It
// never reads the ledger.
func Classify(doc *claims.Document, message string) (claims.Route, string) {
	text := routingText(doc, message)

	if doc != nil {
		switch {
		case doc.IsMaternity():
			return claims.RouteExceptions, "maternity/adoption claim"
		case doc.Accident || doc.SolicitorInvolved:
			return claims.RouteExceptions, "accident or third-party involvement"
		}
	}
	if m := exceptionWords.FindString(text); m != "" {
		return claims.RouteExceptions, fmt.Sprintf("exception keyword %q", strings.ToLower(m))
	}

	if doc != nil {
		switch {
		case doc.TreatmentType == claims.TreatmentHospital:
			return claims.RouteHospital, "hospital in-patient treatment"
		case doc.HospitalDays > 0:
			return claims.RouteHospital, fmt.Sprintf("%d hospital days claimed", doc.HospitalDays)
		case doc.ProcedureCode != "":
			return claims.RouteHospital, fmt.Sprintf("procedure code %s", doc.ProcedureCode)
		}
	}
	// Hospital wording wins over a recognised outpatient category.
	if m := hospitalWords.FindString(text); m != "" {
		return claims.RouteHospital, fmt.Sprintf("hospital keyword %q", strings.ToLower(m))
	}
	return claims.RouteOutpatient, "standard out-patient cash back"
}

func routingText(doc *claims.Document, message string) string {
	parts := []string{html.UnescapeString(message)}
	if doc != nil {
		parts = append(parts, string(doc.TreatmentType), doc.FormType)
	}
	return strings.Join(parts, " ")
}

// validRoute reports whether s names a route exactly, after trimming.
func validRoute(s string) (claims.Route, bool) {
	r := claims.Route(strings.ToLower(strings.TrimSpace(s)))
	return r, r == claims.ParseRoute(string(r))
}

func (p *Pipeline) routeClaim(ctx context.Context, st *state) (Stage, error) {
	route, why := Classify(st.doc, st.req.Message)
	st.route = route

	if p.router != nil {
		hint := p.router.SuggestRoute(ctx, st.doc, st.req.Message)
		if r, ok := validRoute(hint); ok {
			if r != route {
				st.log(fmt.Sprintf("Router → Model suggested %s over %s", r, route))
			}
			st.route = r
			why = "model suggestion"
		}
	}

	st.log(fmt.Sprintf("Router → Routed to %s (%s)", strings.ToUpper(string(st.route)), why))
	return StageProcessing, nil
}
