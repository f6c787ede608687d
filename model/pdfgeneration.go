package model

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	api "github.com/speedata/publisher-api"
)

func attachFile(p *api.PublishRequest, filename string, destFilename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	pf := api.PublishFile{Filename: destFilename, Contents: data}
	p.Files = append(p.Files, pf)
	return nil
}

func attachBytes(p *api.PublishRequest, destFilename string, contents []byte) {
	pf := api.PublishFile{Filename: destFilename, Contents: contents}
	p.Files = append(p.Files, pf)
}

func ensureDir(dirName string) error {
	err := os.MkdirAll(dirName, 0755)
	if err != nil {
		return err
	}
	return nil
}

// pdfPartie is one party (the firm or the client) in the data file handed to
// the publishing server.
type pdfPartie struct {
	Nom        string `xml:"nom"`
	Contact    string `xml:"contact,omitempty"`
	Adresse    string `xml:"adresse"`
	CodePostal string `xml:"codepostal"`
	Ville      string `xml:"ville"`
	Telephone  string `xml:"telephone,omitempty"`
	Email      string `xml:"email,omitempty"`
	SIRET      string `xml:"siret,omitempty"`
	NumeroTVA  string `xml:"numerotva,omitempty"`
}

type pdfLigne struct {
	Ordre        int    `xml:"ordre,attr"`
	Description  string `xml:"description"`
	Quantite     string `xml:"quantite"`
	PrixUnitaire string `xml:"prixunitaire"`
	Remise       string `xml:"remise"`
	MontantHT    string `xml:"montantht"`
}

type pdfData struct {
	XMLName       xml.Name   `xml:"document"`
	Type          string     `xml:"type,attr"`
	Numero        string     `xml:"numero"`
	DateEmission  string     `xml:"dateemission"`
	DateEcheance  string     `xml:"dateecheance"`
	Statut        string     `xml:"statut"`
	Entreprise    pdfPartie  `xml:"entreprise"`
	Client        pdfPartie  `xml:"client"`
	Logo          string     `xml:"logo,omitempty"`
	Lignes        []pdfLigne `xml:"lignes>ligne"`
	TauxTVA       string     `xml:"tauxtva"`
	TotalHT       string     `xml:"totalht"`
	TotalTVA      string     `xml:"totaltva"`
	TotalTTC      string     `xml:"totalttc"`
	MontantPaye   string     `xml:"montantpaye,omitempty"`
	ResteAPayer   string     `xml:"resteapayer,omitempty"`
	Notes         string     `xml:"notes,omitempty"`
	Conditions    string     `xml:"conditions,omitempty"`
	NumeroDevis   string     `xml:"numerodevis,omitempty"`
	NumeroFacture string     `xml:"numerofacture,omitempty"`
}

const dateFormatPDF = "02/01/2006"

func montant(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func pdfLignes(d *DocumentDraft) []pdfLigne {
	lignes := make([]pdfLigne, 0, len(d.Lignes))
	for _, l := range d.Lignes {
		lignes = append(lignes, pdfLigne{
			Ordre:        l.Ordre + 1,
			Description:  l.Description,
			Quantite:     l.Quantite.String(),
			PrixUnitaire: montant(l.PrixUnitaire),
			Remise:       l.RemisePourcent.String(),
			MontantHT:    montant(l.MontantHT),
		})
	}
	return lignes
}

// buildPDFData assembles the data file for the layout. numero and numeroLie
// are the document's own number and, for a facture built from a devis, the
// number of that devis.
func (store *Store) buildPDFData(d *DocumentDraft, numero, numeroLie string) ([]byte, *Parametres, error) {
	params, err := store.LoadParametres()
	if err != nil {
		return nil, nil, err
	}
	client, err := store.LoadClient(d.ClientID)
	if err != nil {
		return nil, nil, err
	}

	data := pdfData{
		Type:         string(d.Type),
		Numero:       numero,
		DateEmission: d.DateEmission.Format(dateFormatPDF),
		DateEcheance: d.DateEcheance.Format(dateFormatPDF),
		Statut:       d.Statut,
		Entreprise: pdfPartie{
			Nom:        params.NomEntreprise,
			Adresse:    params.Adresse,
			CodePostal: params.CodePostal,
			Ville:      params.Ville,
			Telephone:  params.Telephone,
			Email:      params.Email,
			SIRET:      params.SIRET,
			NumeroTVA:  params.NumeroTVA,
		},
		Client: pdfPartie{
			Nom:        client.RaisonSociale,
			Contact:    client.Contact,
			Adresse:    client.Adresse,
			CodePostal: client.CodePostal,
			Ville:      client.Ville,
			Email:      client.Email,
			SIRET:      client.SIRET,
			NumeroTVA:  client.NumeroTVA,
		},
		Logo:       params.LogoFilename,
		Lignes:     pdfLignes(d),
		TauxTVA:    d.TauxTVA.String(),
		TotalHT:    montant(d.Totaux.TotalHT),
		TotalTVA:   montant(d.Totaux.TotalTVA),
		TotalTTC:   montant(d.Totaux.TotalTTC),
		Notes:      d.Notes,
		Conditions: d.Conditions,
	}
	if d.Type == TypeFacture {
		data.NumeroDevis = numeroLie
		if d.MontantPaye.IsPositive() {
			data.MontantPaye = montant(d.MontantPaye)
			data.ResteAPayer = montant(d.ResteAPayer())
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), params, nil
}

// CreateDocumentPDF renders a devis or facture through the publishing server
// and writes the PDF to pdfpath. numeroLie may be empty.
func (store *Store) CreateDocumentPDF(d *DocumentDraft, numero, numeroLie string, pdfpath string, logger *slog.Logger) error {
	ep, err := api.NewEndpoint(store.Config.PublishingServerUsername, store.Config.PublishingServerAddress)
	if err != nil {
		return err
	}
	p := ep.NewPublishRequest()
	p.Version = "5.1.25"

	dataXML, params, err := store.buildPDFData(d, numero, numeroLie)
	if err != nil {
		return err
	}
	attachBytes(p, "data.xml", dataXML)

	if params.LogoChemin != "" {
		rc, err := store.Blobs.Open(params.LogoChemin)
		if err == nil {
			logo, rerr := io.ReadAll(rc)
			rc.Close()
			if rerr == nil {
				attachBytes(p, params.LogoFilename, logo)
			}
		} else {
			logger.Warn("logo missing, rendering without it", "chemin", params.LogoChemin)
		}
	}

	assetsDir := filepath.Join(store.Config.Basedir, "assets", "layout")
	if err = ensureDir(assetsDir); err != nil {
		return err
	}

	files, err := os.ReadDir(assetsDir)
	if err != nil {
		return err
	}
	hasLayout := false
	reject := map[string]bool{
		".DS_Store":     true,
		"publisher.cfg": true,
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if file.Name() == "layout.xml" {
			hasLayout = true
		}
		if reject[file.Name()] {
			continue
		}
		fullPath := filepath.Join(assetsDir, file.Name())
		logger.Debug("attaching layout asset", "file", fullPath)
		attachFile(p, fullPath, file.Name())
	}

	if !hasLayout {
		// attach default layout
		genericLayout := filepath.Join(store.Config.Basedir, "assets", "generic", "layout.xml")
		attachFile(p, genericLayout, "layout.xml")
	}
	resp, err := ep.Publish(p)
	if err != nil {
		return err
	}

	ps, err := resp.Wait()
	if err != nil {
		return err
	}

	if ps.Errors > 0 {
		logger.Error("PDF generation done", "errors", ps.Errors, "finishedAt", ps.Finished.Format(time.Stamp))
	} else {
		logger.Debug("PDF generation done", "errors", ps.Errors, "finishedAt", ps.Finished.Format(time.Stamp))
	}
	for _, e := range ps.Errormessages {
		logger.Error("error during PDF generation", "message", e.Error)
	}
	f, err := os.Create(pdfpath)
	if err != nil {
		return err
	}
	defer f.Close()
	err = resp.GetPDF(f)
	if err != nil {
		return err
	}
	return nil
}

// CreateDevisPDF renders a persisted devis.
func (store *Store) CreateDevisPDF(dv *Devis, pdfpath string, logger *slog.Logger) error {
	d := DraftFromDevis(store, dv)
	return store.CreateDocumentPDF(d, dv.Numero, "", pdfpath, logger)
}

// CreateFacturePDF renders a persisted facture. When the facture came from a
// devis the devis number is printed as a reference.
func (store *Store) CreateFacturePDF(f *Facture, pdfpath string, logger *slog.Logger) error {
	d := DraftFromFacture(store, f)
	numeroLie := ""
	if f.DevisID != 0 {
		if dv, err := store.LoadDevis(f.DevisID); err == nil {
			numeroLie = dv.Numero
		}
	}
	return store.CreateDocumentPDF(d, f.Numero, numeroLie, pdfpath, logger)
}
