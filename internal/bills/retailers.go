package bills

import "strings"

// retailerPatterns maps canonical retailer names to the phrases that identify
// them on a bill. Longer phrases score higher than short ones so "agl energy"
// beats a stray "red".
var retailerPatterns = map[string][]string{
	"AGL":             {"agl", "australian gas light", "agl energy"},
	"Origin Energy":   {"origin", "origin energy"},
	"EnergyAustralia": {"energyaustralia", "energy australia"},
	"Red Energy":      {"red energy"},
	"Simply Energy":   {"simply energy", "simply"},
	"Alinta Energy":   {"alinta", "alinta energy"},
	"Momentum Energy": {"momentum", "momentum energy"},
	"Powershop":       {"powershop"},
	"Click Energy":    {"click energy"},
	"Lumo Energy":     {"lumo", "lumo energy"},
	"Nectr":           {"nectr"},
	"Sumo":            {"sumo"},
	"Tango Energy":    {"tango"},
	"OVO Energy":      {"ovo energy"},
	"GloBird Energy":  {"globird", "glo bird"},
}

// SupportedCompanies returns the retailer list surfaced to clients.
func SupportedCompanies() []string {
	return []string{
		"Origin Energy", "AGL", "EnergyAustralia", "Alinta Energy",
		"Red Energy", "Simply Energy", "Nectr", "Lumo Energy",
		"Powershop", "Click Energy", "Momentum Energy",
	}
}

// findRetailer identifies the energy retailer by scoring pattern hits.
func findRetailer(text string) string {
	lower := strings.ToLower(text)
	best := ""
	bestScore := 0
	for retailer, patterns := range retailerPatterns {
		score := 0
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				score += len(p)
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && retailer < best) {
			best = retailer
			bestScore = score
		}
	}
	return best
}

// countRetailerMatches reports how many distinct retailers appear in the text.
func countRetailerMatches(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, patterns := range retailerPatterns {
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				count++
				break
			}
		}
	}
	return count
}
