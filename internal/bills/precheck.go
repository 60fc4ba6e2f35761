package bills

import "strings"

// ValidationError describes why an uploaded document was rejected as
// not being a recognizable energy bill.
type ValidationError struct {
	Message          string
	Tips             []string
	EnergyTermsFound int
	RetailersMatched int
}

func (e *ValidationError) Error() string { return e.Message }

var energyTerms = []string{
	"kwh",
	"kilowatt",
	"electricity",
	"energy",
	"usage",
	"tariff",
	"meter",
	"supply charge",
	"feed-in",
	"solar",
	"peak",
	"off-peak",
	"billing period",
	"amount due",
	"nmi",
}

var rejectionTips = []string{
	"Make sure the bill is clearly visible and not blurry",
	"Check that it's from an Australian energy retailer",
	"Ensure usage and cost information is visible",
}

// UnreadableDocument wraps an extraction failure as a validation error so
// callers surface the same rejection shape for unreadable and off-topic
// uploads.
func UnreadableDocument(cause error) *ValidationError {
	msg := "could not read the uploaded file"
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &ValidationError{Message: msg, Tips: rejectionTips}
}

// CheckEnergyDocument verifies that extracted text plausibly came from
// an Australian energy bill. A document passes when a known retailer
// name appears, or when enough generic energy terms do.
func CheckEnergyDocument(text string) error {
	lower := strings.ToLower(text)

	terms := 0
	for _, t := range energyTerms {
		if strings.Contains(lower, t) {
			terms++
		}
	}
	retailers := countRetailerMatches(text)

	if retailers >= 1 || terms >= 3 {
		return nil
	}
	return &ValidationError{
		Message:          "document does not appear to be an energy bill",
		Tips:             rejectionTips,
		EnergyTermsFound: terms,
		RetailersMatched: retailers,
	}
}
