package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/intent"
)

type recorder struct {
	decisions []intent.Decision
}

func (r *recorder) ApplyRoute(d intent.Decision) { r.decisions = append(r.decisions, d) }

func loanIntent(name core.IntentName, agreementID string) core.Intent {
	c := core.Context{Type: core.ContextLoan}
	if agreementID != "" {
		c.ID = &core.ContextID{AgreementID: agreementID}
	}
	return core.Intent{Name: name, Context: c}
}

func TestRoute_Table(t *testing.T) {
	tests := []struct {
		name   string
		in     core.Intent
		view   core.View
		routed bool
	}{
		{"view loan", loanIntent(core.IntentViewLoanAgreement, "A1"), core.ViewLibrary, true},
		{"approve loan", loanIntent(core.IntentApproveLoanAgreement, "A2"), core.ViewLibrary, true},
		{"view loan without id", loanIntent(core.IntentViewLoanAgreement, ""), core.ViewNone, false},
		{"approve loan blank id", loanIntent(core.IntentApproveLoanAgreement, "  "), core.ViewNone, false},
		{"esg", core.Intent{Name: core.IntentViewESGAnalytics}, core.ViewESG, true},
		{"portfolio", core.Intent{Name: core.IntentViewPortfolio}, core.ViewDashboard, true},
		{"extract without content", core.Intent{Name: core.IntentExtractCreditAgreement}, core.ViewNone, false},
		{"unknown", core.Intent{Name: "StartRocket"}, core.ViewNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := intent.Route(tt.in)
			assert.Equal(t, tt.routed, ok)
			assert.Equal(t, tt.view, d.View)
		})
	}
}

func TestRoute_ViewLoanBuildsRecord(t *testing.T) {
	in := loanIntent(core.IntentViewLoanAgreement, "A1")
	in.Context.ID.LoanID = "LN-9"
	in.Context.Loan = &core.LoanPayload{
		Borrower:  "ACME Corp",
		Agreement: &core.CreditAgreementData{GoverningLaw: "NY"},
	}

	d, ok := intent.Route(in)
	require.True(t, ok)
	assert.Equal(t, core.ViewLibrary, d.View)
	assert.Equal(t, "A1", d.Record.DealID)
	assert.Equal(t, "LN-9", d.Record.LoanIdentificationNumber)
	assert.Equal(t, "NY", d.Record.GoverningLaw)
	borrower, ok := d.Record.FindParty("borrower")
	require.True(t, ok)
	assert.Equal(t, "ACME Corp", borrower.Name)

	// The context's own record is not modified.
	assert.Empty(t, in.Context.Loan.Agreement.DealID)
}

func TestRoute_ExtractStagesContent(t *testing.T) {
	d, ok := intent.Route(core.Intent{
		Name:    core.IntentExtractCreditAgreement,
		Context: core.Context{Type: core.ContextGeneratedDocument, Content: "THIS AGREEMENT ..."},
	})
	require.True(t, ok)
	assert.Equal(t, core.ViewDigitizer, d.View)
	assert.Equal(t, "THIS AGREEMENT ...", d.StagedContent)
	assert.Nil(t, d.Record)
}

func TestRouter_DeliversWhenAttached(t *testing.T) {
	r := intent.NewRouter()
	rec := &recorder{}
	r.Attach(rec)

	assert.True(t, r.Dispatch(loanIntent(core.IntentViewLoanAgreement, "A1")))
	assert.False(t, r.Dispatch(loanIntent(core.IntentViewLoanAgreement, "")))
	assert.False(t, r.Dispatch(core.Intent{Name: "Nope"}))

	require.Len(t, rec.decisions, 1)
	assert.Equal(t, "A1", rec.decisions[0].Record.DealID)
	assert.Equal(t, intent.PhaseIdle, r.Phase())

	state := r.State().(intent.RouterState)
	assert.Equal(t, uint64(1), state.Routed)
	assert.Equal(t, uint64(2), state.Dropped)
}

func TestRouter_PendingDrainedExactlyOnce(t *testing.T) {
	r := intent.NewRouter()

	assert.False(t, r.Dispatch(core.Intent{Name: core.IntentViewESGAnalytics}))
	assert.False(t, r.Dispatch(core.Intent{Name: core.IntentViewPortfolio}))

	pending, ok := r.Pending()
	require.True(t, ok)
	assert.Equal(t, core.IntentViewPortfolio, pending.Name, "last write wins")

	rec := &recorder{}
	r.Attach(rec)
	require.Len(t, rec.decisions, 1)
	assert.Equal(t, core.ViewDashboard, rec.decisions[0].View)

	_, ok = r.Pending()
	assert.False(t, ok)
	assert.False(t, r.Drain())

	// A late second subscriber sees nothing.
	late := &recorder{}
	r.Attach(late)
	assert.Empty(t, late.decisions)
	assert.Len(t, rec.decisions, 1)
}

func TestRouter_ReentrantDispatchIsQueued(t *testing.T) {
	r := intent.NewRouter()
	var views []core.View
	var target intent.TargetFunc
	target = func(d intent.Decision) {
		views = append(views, d.View)
		if d.View == core.ViewESG {
			assert.False(t, r.Dispatch(core.Intent{Name: core.IntentViewPortfolio}))
		}
	}
	r.Attach(target)

	r.Dispatch(core.Intent{Name: core.IntentViewESGAnalytics})
	assert.Equal(t, []core.View{core.ViewESG, core.ViewDashboard}, views)
}

func TestRouter_DetachBuffersAgain(t *testing.T) {
	r := intent.NewRouter()
	rec := &recorder{}
	detach := r.Attach(rec)
	detach()

	assert.False(t, r.Dispatch(core.Intent{Name: core.IntentViewESGAnalytics}))
	assert.Empty(t, rec.decisions)

	r.Attach(rec)
	assert.Len(t, rec.decisions, 1)
}

func TestRouter_PanickingTargetDoesNotWedge(t *testing.T) {
	r := intent.NewRouter()
	r.Attach(intent.TargetFunc(func(intent.Decision) { panic("render failed") }))

	assert.NotPanics(t, func() {
		assert.False(t, r.Dispatch(core.Intent{Name: core.IntentViewESGAnalytics}))
	})
	assert.Equal(t, intent.PhaseIdle, r.Phase())
}

func TestParseIntent(t *testing.T) {
	in, err := intent.ParseIntent("ViewLoanAgreement", []byte(`{"type": "loan", "id": {"agreementId": "A1"}}`))
	require.NoError(t, err)
	assert.Equal(t, core.ContextLoan, in.Context.Type)

	d, ok := intent.Route(in)
	require.True(t, ok)
	assert.Equal(t, "A1", d.Record.DealID)

	_, err = intent.ParseIntent("ViewLoanAgreement", []byte(`{"id": {"agreementId": "A1"}}`))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = intent.ParseIntent("", []byte(`{"type": "loan"}`))
	assert.ErrorIs(t, err, core.ErrValidation)
}
