package model

import (
	"fmt"
	"io"
	"strings"

	"github.com/biter777/countries"
	"github.com/speedata/einvoice"
)

// countryID returns the two-letter alpha code for the given country name.
// Clients without a country are assumed to be French.
func countryID(country string) string {
	c := countries.ByName(country)
	if c == countries.Unknown {
		return "FR" // default
	}
	return c.Alpha2()
}

func filterEmpty(ss ...string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// WriteFacturX writes the Factur-X (EN16931) XML for a facture. Seller data
// comes from the parametres row, buyer data from the client.
func (store *Store) WriteFacturX(f *Facture, w io.Writer) error {
	params, err := store.LoadParametres()
	if err != nil {
		return err
	}
	client, err := store.LoadClient(f.ClientID)
	if err != nil {
		return err
	}

	// combine notes and conditions, ignore empty parts
	text := strings.TrimSpace(strings.Join(
		filterEmpty(f.Notes, f.Conditions), "·"))

	zi := einvoice.Invoice{
		InvoiceNumber:       f.Numero,
		InvoiceTypeCode:     380,
		Profile:             einvoice.CProfileEN16931,
		InvoiceDate:         f.DateEmission,
		OccurrenceDateTime:  f.DateEmission,
		InvoiceCurrencyCode: "EUR",
		TaxCurrencyCode:     "EUR",
		Notes: []einvoice.Note{{
			Text: text,
		}},
		Seller: einvoice.Party{
			Name:              params.NomEntreprise,
			VATaxRegistration: params.NumeroTVA,
			PostalAddress: &einvoice.PostalAddress{
				Line1:        params.Adresse,
				City:         params.Ville,
				PostcodeCode: params.CodePostal,
				CountryID:    "FR",
			},
			DefinedTradeContact: []einvoice.DefinedTradeContact{{
				PersonName: params.NomEntreprise,
				EMail:      params.Email,
			}},
		},
		Buyer: einvoice.Party{
			Name: client.RaisonSociale,
			PostalAddress: &einvoice.PostalAddress{
				Line1:        client.Adresse,
				City:         client.Ville,
				PostcodeCode: client.CodePostal,
				CountryID:    countryID(client.Pays),
			},
			DefinedTradeContact: []einvoice.DefinedTradeContact{{
				PersonName: client.Contact,
			}},
			VATaxRegistration: client.NumeroTVA,
		},
		SpecifiedTradePaymentTerms: []einvoice.SpecifiedTradePaymentTerms{{
			DueDate: f.DateEcheance,
		}},
	}

	for _, l := range f.Lignes {
		li := einvoice.InvoiceLine{
			LineID:                   fmt.Sprintf("%d", l.Ordre+1),
			ItemName:                 l.Description,
			BilledQuantity:           l.Quantite,
			BilledQuantityUnit:       "C62",
			NetPrice:                 l.PrixUnitaire,
			TaxRateApplicablePercent: f.TauxTVA,
			Total:                    l.MontantHT,
			TaxTypeCode:              "VAT",
			TaxCategoryCode:          "S",
		}
		zi.InvoiceLines = append(zi.InvoiceLines, li)
	}
	zi.UpdateApplicableTradeTax(nil)
	zi.UpdateTotals()

	return zi.Write(w)
}
