package bills

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedBill holds the structured fields extracted from a bill's text.
type ParsedBill struct {
	Retailer          string
	TotalAmount       float64
	UsageKWh          float64
	BillingDays       int
	State             string
	Postcode          string
	SolarExportKWh    float64
	SolarCreditAmount float64
	FeedInTariff      float64
	TariffType        string
	DailyAverageKWh   float64
	CostPerKWh        float64
	Confidence        float64
}

// HasSolar reports whether the bill shows evidence of a solar system.
func (b ParsedBill) HasSolar() bool {
	return b.SolarExportKWh > 0 || b.SolarCreditAmount > 0 || b.FeedInTariff > 0
}

var (
	totalAmountPatterns = compileAll(
		`amount due[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`total amount due[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`total amount[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`your total for this bill[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`new charges[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`current charges[\s:$]*(\d+(?:,\d{3})*\.?\d*)`,
		`\$(\d+(?:,\d{3})*\.?\d*)\s*(?:amount due|total|balance)`,
		`total[\s:]*\$(\d+(?:,\d{3})*\.?\d*)`,
	)
	usagePatterns = compileAll(
		`any time usage[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`general usage[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`total usage[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`total kwh[\s:]*(\d+(?:,\d{3})*\.?\d*)`,
		`electricity usage[\s:]*(\d+(?:,\d{3})*\.?\d*)`,
		`total electricity consumed[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`consumption[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`usage[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
	)
	billingDaysPatterns = compileAll(
		`\((\d+)\s*days\)`,
		`number of days[\s:]*(\d+)`,
		`(\d+)\s*days`,
	)
	postcodePatterns = compileAll(
		`\b(\d{4})\s*(?:nsw|vic|qld|sa|wa|tas|nt|act)\b`,
		`\b(?:nsw|vic|qld|sa|wa|tas|nt|act)[\s,]+(\d{4})\b`,
		`\b(\d{4})\s+australia\b`,
	)
	statePattern        = regexp.MustCompile(`\b(nsw|vic|qld|sa|wa|tas|nt|act)\b`)
	stateFullPattern    = regexp.MustCompile(`\b(new south wales|victoria|queensland|south australia|western australia|tasmania|northern territory|australian capital territory)\b`)
	solarExportPatterns = compileAll(
		`solar exports?[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`feed[\-\s]*in[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`exported electricity[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
		`solar generation exported[\s:]*(\d+(?:,\d{3})*\.?\d*)\s*kwh`,
	)
	solarCreditPatterns = compileAll(
		`solar feed[\-\s]*in credit[\s:$\-]*(\d+(?:,\d{3})*\.?\d*)`,
		`solar credit[\s:$\-]*(\d+(?:,\d{3})*\.?\d*)`,
		`feed[\-\s]*in[\s:]*\$\-?(\d+(?:,\d{3})*\.?\d*)`,
		`exported electricity credit[\s:$\-]*(\d+(?:,\d{3})*\.?\d*)`,
	)
	feedInTariffPatterns = compileAll(
		`feed[\-\s]*in tariff[\s:$]*(\d+\.?\d*)`,
		`solar tariff[\s:$]*(\d+\.?\d*)`,
		`export rate[\s:$]*(\d+\.?\d*)`,
		`solar buyback rate[\s:]*(\d+\.?\d*)c?/kwh`,
	)
)

var stateAbbrev = map[string]string{
	"new south wales":              "NSW",
	"victoria":                     "VIC",
	"queensland":                   "QLD",
	"south australia":              "SA",
	"western australia":            "WA",
	"tasmania":                     "TAS",
	"northern territory":           "NT",
	"australian capital territory": "ACT",
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Parse extracts structured bill data from raw text.
func Parse(text string) ParsedBill {
	lower := strings.ToLower(text)

	bill := ParsedBill{
		Retailer:          findRetailer(text),
		TotalAmount:       extractAmount(lower, totalAmountPatterns),
		UsageKWh:          extractAmount(lower, usagePatterns),
		BillingDays:       extractInt(lower, billingDaysPatterns),
		State:             extractState(lower),
		Postcode:          extractFirst(lower, postcodePatterns),
		SolarExportKWh:    extractAmount(lower, solarExportPatterns),
		SolarCreditAmount: extractAmount(lower, solarCreditPatterns),
		FeedInTariff:      extractAmount(lower, feedInTariffPatterns),
		TariffType:        identifyTariffType(lower),
	}

	if bill.UsageKWh > 0 && bill.BillingDays > 0 {
		bill.DailyAverageKWh = bill.UsageKWh / float64(bill.BillingDays)
	}
	if bill.TotalAmount > 0 && bill.UsageKWh > 0 {
		bill.CostPerKWh = bill.TotalAmount / bill.UsageKWh
	}
	bill.Confidence = confidence(bill)

	return bill
}

func extractFirst(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractAmount(text string, patterns []*regexp.Regexp) float64 {
	raw := extractFirst(text, patterns)
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", "")
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func extractInt(text string, patterns []*regexp.Regexp) int {
	raw := extractFirst(text, patterns)
	if raw == "" {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0
	}
	return val
}

func extractState(text string) string {
	if m := statePattern.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := stateFullPattern.FindStringSubmatch(text); m != nil {
		return stateAbbrev[m[1]]
	}
	return ""
}

func identifyTariffType(text string) string {
	switch {
	case strings.Contains(text, "time of use") || strings.Contains(text, "off-peak") || strings.Contains(text, "shoulder"):
		return "time_of_use"
	case strings.Contains(text, "demand"):
		return "demand"
	default:
		return "single_rate"
	}
}

func confidence(bill ParsedBill) float64 {
	found := 0
	if bill.Retailer != "" {
		found++
	}
	if bill.TotalAmount > 0 {
		found++
	}
	if bill.UsageKWh > 0 {
		found++
	}
	base := float64(found) / 3.0

	bonus := 0.0
	if bill.State != "" {
		bonus += 0.1
	}
	if bill.BillingDays > 0 {
		bonus += 0.1
	}
	if bill.Postcode != "" {
		bonus += 0.1
	}

	if base+bonus > 1.0 {
		return 1.0
	}
	return base + bonus
}
