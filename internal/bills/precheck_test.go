package bills

import (
	"errors"
	"testing"
)

func TestCheckEnergyDocument(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{
			name:    "retailer match alone is enough",
			text:    "Tax invoice from Alinta Energy for your account",
			wantErr: false,
		},
		{
			name:    "three energy terms without retailer",
			text:    "Electricity usage this billing period was 500 kWh",
			wantErr: false,
		},
		{
			name:    "two terms is not enough",
			text:    "Your usage of our solar product",
			wantErr: true,
		},
		{
			name:    "unrelated document",
			text:    "Minutes of the quarterly board meeting, agenda attached",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckEnergyDocument(tc.text)
			if (err != nil) != tc.wantErr {
				t.Fatalf("CheckEnergyDocument() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestCheckEnergyDocumentRejection(t *testing.T) {
	err := CheckEnergyDocument("a shopping list: milk, bread, eggs")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Tips) != 3 {
		t.Errorf("tips = %d, want 3", len(verr.Tips))
	}
	if verr.RetailersMatched != 0 {
		t.Errorf("retailers matched = %d, want 0", verr.RetailersMatched)
	}
	if verr.Error() == "" {
		t.Error("empty error message")
	}
}
