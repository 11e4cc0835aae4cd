package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Flatten maps every non-empty field of rec to its path.
//
// List members are addressed by their natural key: parties by role
// (parties[role='Borrower'].lei), facilities by name and ESG targets by KPI
// type. When the key is missing or repeated within the record the member's
// name, then its index, is used instead. Extraction status is bookkeeping and
// is not flattened.
func Flatten(rec *core.CreditAgreementData) map[string]any {
	out := make(map[string]any)
	if rec == nil {
		return out
	}

	putString(out, "agreement_date", rec.AgreementDate)
	putString(out, "governing_law", rec.GoverningLaw)
	putString(out, "deal_id", rec.DealID)
	putString(out, "loan_identification_number", rec.LoanIdentificationNumber)
	if rec.SustainabilityLinked != nil {
		out["sustainability_linked"] = *rec.SustainabilityLinked
	}

	roles := countKeys(len(rec.Parties), func(i int) string { return rec.Parties[i].Role })
	for i, p := range rec.Parties {
		prefix := memberPath("parties", i, "role", p.Role, roles, p.Name)
		putString(out, prefix+".name", p.Name)
		putString(out, prefix+".lei", p.LEI)
		if roleKeyed(p.Role, roles) {
			continue
		}
		putString(out, prefix+".role", p.Role)
	}

	names := countKeys(len(rec.Facilities), func(i int) string { return rec.Facilities[i].FacilityName })
	for i, f := range rec.Facilities {
		prefix := memberPath("facilities", i, "name", f.FacilityName, names, "")
		putString(out, prefix+".maturity_date", f.MaturityDate)
		if f.CommitmentAmount != nil {
			putFloat(out, prefix+".commitment_amount.amount", f.CommitmentAmount.Amount)
			putString(out, prefix+".commitment_amount.currency", f.CommitmentAmount.Currency)
		}
		if t := f.InterestTerms; t != nil {
			putString(out, prefix+".interest_terms.rate_type", t.RateType)
			putString(out, prefix+".interest_terms.benchmark", t.Benchmark)
			putFloat(out, prefix+".interest_terms.spread_bps", t.SpreadBPS)
			putString(out, prefix+".interest_terms.payment_frequency", t.PaymentFrequency)
		}
	}

	kpis := countKeys(len(rec.ESGKPITargets), func(i int) string { return rec.ESGKPITargets[i].KPIType })
	for i, k := range rec.ESGKPITargets {
		prefix := memberPath("esg_kpi_targets", i, "kpi_type", k.KPIType, kpis, "")
		putFloat(out, prefix+".target_value", k.TargetValue)
		putString(out, prefix+".unit", k.Unit)
		putFloat(out, prefix+".current_value", k.CurrentValue)
		putFloat(out, prefix+".margin_adjustment_bps", k.MarginAdjustmentBPS)
	}

	keys := make([]string, 0, len(rec.Extra))
	for k := range rec.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		flattenValue(out, k, rec.Extra[k])
	}
	return out
}

func flattenValue(out map[string]any, path string, v any) {
	switch t := v.(type) {
	case nil:
	case string:
		putString(out, path, t)
	case map[string]any:
		for k, val := range t {
			flattenValue(out, path+"."+k, val)
		}
	case []any:
		for i, val := range t {
			flattenValue(out, fmt.Sprintf("%s[%d]", path, i), val)
		}
	default:
		out[path] = t
	}
}

func memberPath(list string, index int, keyName, key string, counts map[string]int, fallback string) string {
	if roleKeyed(key, counts) {
		return fmt.Sprintf("%s[%s='%s']", list, keyName, strings.TrimSpace(key))
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fmt.Sprintf("%s[name='%s']", list, fallback)
	}
	return fmt.Sprintf("%s[%d]", list, index)
}

func roleKeyed(key string, counts map[string]int) bool {
	norm := normalizeKey(key)
	return norm != "" && counts[norm] == 1
}

func countKeys(n int, key func(int) string) map[string]int {
	counts := make(map[string]int, n)
	for i := 0; i < n; i++ {
		if k := normalizeKey(key(i)); k != "" {
			counts[k]++
		}
	}
	return counts
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func putString(out map[string]any, path, v string) {
	if v = strings.TrimSpace(v); v != "" {
		out[path] = v
	}
}

func putFloat(out map[string]any, path string, v *float64) {
	if v != nil {
		out[path] = *v
	}
}
