package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMontantLigne(t *testing.T) {
	tests := []struct {
		name     string
		quantite string
		prix     string
		remise   string
		want     string
	}{
		{"no discount", "2", "100", "0", "200"},
		{"full discount", "2", "100", "100", "0"},
		{"half discount", "10", "32.00", "50", "160"},
		{"fractional quantity", "0.5", "90", "0", "45"},
		{"rounding to cents", "3", "9.99", "10", "26.97"},
		{"repeating decimal rounds", "1", "100", "33.333", "66.67"},
		{"zero quantity", "0", "100", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MontantLigne(d(tt.quantite), d(tt.prix), d(tt.remise))
			if !got.Equal(d(tt.want)) {
				t.Errorf("MontantLigne(%s, %s, %s) = %s, want %s",
					tt.quantite, tt.prix, tt.remise, got, tt.want)
			}
		})
	}
}

func TestCalculerTotaux(t *testing.T) {
	montants := []decimal.Decimal{d("200"), d("160"), d("26.97")}
	tot := CalculerTotaux(montants, d("20.00"))

	if !tot.TotalHT.Equal(d("386.97")) {
		t.Errorf("TotalHT = %s, want 386.97", tot.TotalHT)
	}
	if !tot.TotalTVA.Equal(d("77.39")) {
		t.Errorf("TotalTVA = %s, want 77.39", tot.TotalTVA)
	}
	if !tot.TotalTTC.Equal(d("464.36")) {
		t.Errorf("TotalTTC = %s, want 464.36", tot.TotalTTC)
	}
}

func TestCalculerTotauxTTCEqualsHTPlusTVA(t *testing.T) {
	montants := []decimal.Decimal{d("33.33"), d("0.01"), d("199.99")}
	for _, taux := range []string{"0", "5.5", "10", "20.00"} {
		tot := CalculerTotaux(montants, d(taux))
		if !tot.TotalTTC.Equal(tot.TotalHT.Add(tot.TotalTVA)) {
			t.Errorf("taux %s: TTC %s != HT %s + TVA %s",
				taux, tot.TotalTTC, tot.TotalHT, tot.TotalTVA)
		}
	}
}

// The sum of already-rounded line amounts is exact, so permuting the lines
// must never change the totals.
func TestCalculerTotauxOrderIndependent(t *testing.T) {
	a := []decimal.Decimal{d("0.01"), d("33.33"), d("66.67"), d("199.99")}
	b := []decimal.Decimal{d("199.99"), d("66.67"), d("0.01"), d("33.33")}

	ta := CalculerTotaux(a, d("20.00"))
	tb := CalculerTotaux(b, d("20.00"))

	if !ta.TotalHT.Equal(tb.TotalHT) || !ta.TotalTVA.Equal(tb.TotalTVA) || !ta.TotalTTC.Equal(tb.TotalTTC) {
		t.Errorf("totals differ by order: %+v vs %+v", ta, tb)
	}
}

func TestCalculerTotauxEmpty(t *testing.T) {
	tot := CalculerTotaux(nil, d("20.00"))
	if !tot.TotalHT.IsZero() || !tot.TotalTVA.IsZero() || !tot.TotalTTC.IsZero() {
		t.Errorf("empty totals = %+v, want all zero", tot)
	}
}
