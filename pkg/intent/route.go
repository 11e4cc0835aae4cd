// Package intent maps inbound (intent, context) pairs onto an application
// view and the normalized record that view should show.
package intent

import (
	"strings"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Decision is the outcome of routing one intent.
type Decision struct {
	Intent        core.IntentName
	View          core.View
	Record        *core.CreditAgreementData
	StagedContent string
	Context       core.Context
}

// Route is the routing table. It reports false when the intent must be
// dropped: unknown name or missing required context field.
func Route(in core.Intent) (Decision, bool) {
	d := Decision{Intent: in.Name, Context: in.Context}

	switch in.Name {
	case core.IntentViewLoanAgreement, core.IntentApproveLoanAgreement:
		agreementID := in.Context.AgreementID()
		if agreementID == "" {
			return Decision{}, false
		}
		d.View = core.ViewLibrary
		d.Record = loanRecord(in.Context, agreementID)

	case core.IntentViewESGAnalytics:
		d.View = core.ViewESG

	case core.IntentExtractCreditAgreement:
		if strings.TrimSpace(in.Context.Content) == "" {
			return Decision{}, false
		}
		d.View = core.ViewDigitizer
		d.StagedContent = in.Context.Content

	case core.IntentViewPortfolio:
		d.View = core.ViewDashboard

	default:
		return Decision{}, false
	}
	return d, true
}

func loanRecord(c core.Context, agreementID string) *core.CreditAgreementData {
	var rec *core.CreditAgreementData
	if c.Loan != nil {
		rec = c.Loan.Agreement.Clone()
	}
	if rec == nil {
		rec = &core.CreditAgreementData{}
	}
	rec.DealID = agreementID
	if rec.LoanIdentificationNumber == "" && c.ID != nil {
		rec.LoanIdentificationNumber = strings.TrimSpace(c.ID.LoanID)
	}
	if c.Loan != nil && c.Loan.Borrower != "" {
		if _, ok := rec.FindParty("Borrower"); !ok {
			rec.Parties = append(rec.Parties, core.Party{Name: c.Loan.Borrower, Role: "Borrower"})
		}
	}
	return rec
}

// ParseIntent validates an intent received from the interop bus.
func ParseIntent(name string, contextJSON []byte) (core.Intent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Intent{}, core.Invalid("intent", "missing name")
	}
	c, err := core.ParseContext(contextJSON)
	if err != nil {
		return core.Intent{}, err
	}
	return core.Intent{Name: core.IntentName(name), Context: c}, nil
}
