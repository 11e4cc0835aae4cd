package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExtractionStatus reports how completely a source (or the fused record) was extracted.
type ExtractionStatus string

const (
	ExtractionSuccess     ExtractionStatus = "success"
	ExtractionPartialData ExtractionStatus = "partial_data_missing"
	ExtractionError       ExtractionStatus = "error"
)

// Valid reports whether s is a known status. The empty status is valid (unset).
func (s ExtractionStatus) Valid() bool {
	switch s {
	case "", ExtractionSuccess, ExtractionPartialData, ExtractionError:
		return true
	}
	return false
}

// Party is a legal entity named in the agreement.
type Party struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	LEI  string `json:"lei,omitempty"`
}

// Money is an amount in a currency. The backend serializes decimals either as
// JSON numbers or as strings; both are accepted. A nil Amount means the
// extractor did not find one.
type Money struct {
	Amount   *float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   json.RawMessage `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Currency = aux.Currency
	m.Amount = nil
	if len(aux.Amount) == 0 || string(aux.Amount) == "null" {
		return nil
	}
	raw := strings.Trim(string(aux.Amount), `"`)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	m.Amount = &amount
	return nil
}

// InterestTerms describes how a facility accrues interest.
type InterestTerms struct {
	RateType         string   `json:"rate_type,omitempty"`
	Benchmark        string   `json:"benchmark,omitempty"`
	SpreadBPS        *float64 `json:"spread_bps,omitempty"`
	PaymentFrequency string   `json:"payment_frequency,omitempty"`
}

// Facility is one credit line of the agreement.
type Facility struct {
	FacilityName     string         `json:"facility_name,omitempty"`
	CommitmentAmount *Money         `json:"commitment_amount,omitempty"`
	MaturityDate     string         `json:"maturity_date,omitempty"`
	InterestTerms    *InterestTerms `json:"interest_terms,omitempty"`
}

// ESGKPITarget is a sustainability performance target linked to the margin.
type ESGKPITarget struct {
	KPIType             string   `json:"kpi_type,omitempty"`
	TargetValue         *float64 `json:"target_value,omitempty"`
	Unit                string   `json:"unit,omitempty"`
	CurrentValue        *float64 `json:"current_value,omitempty"`
	MarginAdjustmentBPS *float64 `json:"margin_adjustment_bps,omitempty"`
}

// CreditAgreementData is the normalized record every view and source works on.
//
// Unknown top-level keys produced by partial extractors are kept in Extra and
// round-trip through JSON unchanged.
type CreditAgreementData struct {
	AgreementDate            string           `json:"agreement_date,omitempty"`
	Parties                  []Party          `json:"parties,omitempty"`
	Facilities               []Facility       `json:"facilities,omitempty"`
	GoverningLaw             string           `json:"governing_law,omitempty"`
	SustainabilityLinked     *bool            `json:"sustainability_linked,omitempty"`
	ESGKPITargets            []ESGKPITarget   `json:"esg_kpi_targets,omitempty"`
	DealID                   string           `json:"deal_id,omitempty"`
	LoanIdentificationNumber string           `json:"loan_identification_number,omitempty"`
	ExtractionStatus         ExtractionStatus `json:"extraction_status,omitempty"`

	Extra map[string]any `json:"-"`
}

var agreementKeys = map[string]struct{}{
	"agreement_date":             {},
	"parties":                    {},
	"facilities":                 {},
	"governing_law":              {},
	"sustainability_linked":      {},
	"esg_kpi_targets":            {},
	"deal_id":                    {},
	"loan_identification_number": {},
	"extraction_status":          {},
}

type agreementAlias CreditAgreementData

func (d CreditAgreementData) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(agreementAlias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]any, len(d.Extra)+len(agreementKeys))
	for k, v := range d.Extra {
		if _, reserved := agreementKeys[k]; !reserved {
			merged[k] = v
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (d *CreditAgreementData) UnmarshalJSON(data []byte) error {
	var alias agreementAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = CreditAgreementData(alias)
	d.Extra = nil
	for k, raw := range fields {
		if _, ok := agreementKeys[k]; ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = v
	}
	return nil
}

// Validate checks the record's enumerated fields.
func (d *CreditAgreementData) Validate() error {
	if d == nil {
		return nil
	}
	if !d.ExtractionStatus.Valid() {
		return Invalid("extraction_status", "unknown status %q", d.ExtractionStatus)
	}
	for i, p := range d.Parties {
		if strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.LEI) == "" {
			return Invalid(fmt.Sprintf("parties[%d]", i), "party needs a name or lei")
		}
	}
	return nil
}

// IsEmpty reports whether the record carries no data at all.
func (d *CreditAgreementData) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.AgreementDate == "" && len(d.Parties) == 0 && len(d.Facilities) == 0 &&
		d.GoverningLaw == "" && d.SustainabilityLinked == nil && len(d.ESGKPITargets) == 0 &&
		d.DealID == "" && d.LoanIdentificationNumber == "" && d.ExtractionStatus == "" &&
		len(d.Extra) == 0
}

// Clone returns a deep copy. Clone of nil is nil.
func (d *CreditAgreementData) Clone() *CreditAgreementData {
	if d == nil {
		return nil
	}
	out := *d
	if d.Parties != nil {
		out.Parties = append([]Party(nil), d.Parties...)
	}
	if d.Facilities != nil {
		out.Facilities = make([]Facility, len(d.Facilities))
		for i, f := range d.Facilities {
			if f.CommitmentAmount != nil {
				m := *f.CommitmentAmount
				m.Amount = cloneFloat(m.Amount)
				f.CommitmentAmount = &m
			}
			if f.InterestTerms != nil {
				t := *f.InterestTerms
				t.SpreadBPS = cloneFloat(t.SpreadBPS)
				f.InterestTerms = &t
			}
			out.Facilities[i] = f
		}
	}
	if d.SustainabilityLinked != nil {
		b := *d.SustainabilityLinked
		out.SustainabilityLinked = &b
	}
	if d.ESGKPITargets != nil {
		out.ESGKPITargets = make([]ESGKPITarget, len(d.ESGKPITargets))
		for i, k := range d.ESGKPITargets {
			k.TargetValue = cloneFloat(k.TargetValue)
			k.CurrentValue = cloneFloat(k.CurrentValue)
			k.MarginAdjustmentBPS = cloneFloat(k.MarginAdjustmentBPS)
			out.ESGKPITargets[i] = k
		}
	}
	if d.Extra != nil {
		out.Extra = cloneValue(d.Extra).(map[string]any)
	}
	return &out
}

// FindParty returns the first party with the given role (case-insensitive).
func (d *CreditAgreementData) FindParty(role string) (Party, bool) {
	if d == nil {
		return Party{}, false
	}
	for _, p := range d.Parties {
		if strings.EqualFold(strings.TrimSpace(p.Role), strings.TrimSpace(role)) {
			return p, true
		}
	}
	return Party{}, false
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
