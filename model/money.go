package model

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)
var one = decimal.NewFromInt(1)

// Totaux are the aggregate amounts of a devis or facture. The TVA is applied
// once on the document total, never per line.
type Totaux struct {
	TotalHT  decimal.Decimal
	TotalTVA decimal.Decimal
	TotalTTC decimal.Decimal
}

// MontantLigne computes the HT amount of one line:
// quantite * prix unitaire, reduced by the remise percentage, rounded to
// cents. Inputs are assumed pre-validated (non-negative, remise in [0,100]).
func MontantLigne(quantite, prixUnitaire, remisePourcent decimal.Decimal) decimal.Decimal {
	brut := quantite.Mul(prixUnitaire)
	net := brut.Mul(one.Sub(remisePourcent.Div(hundred)))
	return net.Round(2)
}

// CalculerTotaux sums the (already rounded) line amounts and applies the TVA
// rate on the aggregate. The sum itself is exact; only the TVA introduces a
// second rounding step, so line order cannot change the result.
func CalculerTotaux(montantsHT []decimal.Decimal, tauxTVA decimal.Decimal) Totaux {
	totalHT := decimal.Zero
	for _, m := range montantsHT {
		totalHT = totalHT.Add(m)
	}
	totalTVA := totalHT.Mul(tauxTVA.Div(hundred)).Round(2)
	return Totaux{
		TotalHT:  totalHT,
		TotalTVA: totalTVA,
		TotalTTC: totalHT.Add(totalTVA),
	}
}
