package controller

import (
	"archive/zip"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
)

type ExportParametres struct {
	XMLName xml.Name `xml:"parametres"`
	Version string   `xml:"version,attr,omitempty"`

	NomEntreprise         string `xml:"nom_entreprise"`
	Adresse               string `xml:"adresse,omitempty"`
	CodePostal            string `xml:"code_postal,omitempty"`
	Ville                 string `xml:"ville,omitempty"`
	Telephone             string `xml:"telephone,omitempty"`
	Email                 string `xml:"email,omitempty"`
	SIRET                 string `xml:"siret,omitempty"`
	NumeroTVA             string `xml:"numero_tva,omitempty"`
	TauxTVADefaut         string `xml:"taux_tva_defaut"`
	DelaiPaiementDefaut   int    `xml:"delai_paiement_defaut"`
	ConditionsGenerales   string `xml:"conditions_generales,omitempty"`
	ConditionsReglement   string `xml:"conditions_reglement,omitempty"`
	NumeroDevisTemplate   string `xml:"numero_devis_template"`
	NumeroFactureTemplate string `xml:"numero_facture_template"`
}

func (ctrl *controller) exportInit(e *echo.Echo) {
	g := e.Group("/export")
	g.Use(ctrl.authMiddleware)
	g.GET("/archive", ctrl.exportArchive)
	g.GET("/factures.xlsx", ctrl.exportFacturesExcel)
	g.GET("/factures.csv", ctrl.exportFacturesCSV)
}

// exportArchive streams a full backup of the account as a ZIP: all master
// data as XML, one Factur-X file per issued facture and the stored client
// documents.
func (ctrl *controller) exportArchive(c echo.Context) error {
	res := c.Response()
	filename := "emapaie_export_" + time.Now().Format("2006-01-02") + ".zip"
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	res.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(res)

	if err := ctrl.exportClientsXML(zw); err != nil {
		return err
	}
	if err := ctrl.exportDevisXML(zw); err != nil {
		return err
	}
	if err := ctrl.exportFacturesXML(zw); err != nil {
		return err
	}
	if err := ctrl.exportParametresXML(zw); err != nil {
		return err
	}
	if err := ctrl.exportFacturXFiles(zw); err != nil {
		return err
	}
	if err := ctrl.exportDocumentBlobs(zw); err != nil {
		return err
	}
	return zw.Close()
}

func (ctrl *controller) exportClientsXML(zw *zip.Writer) error {
	clients, err := ctrl.model.LoadAllClients()
	if err != nil {
		return fmt.Errorf("cannot load clients for export: %w", err)
	}
	f, err := zw.Create("clients.xml")
	if err != nil {
		return fmt.Errorf("cannot create clients.xml in ZIP: %w", err)
	}

	export := ExportClients{Version: "1", Clients: make([]APIClient, 0, len(clients))}
	for _, cl := range clients {
		export.Clients = append(export.Clients, clientToAPI(cl))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode clients.xml: %w", err)
	}
	return enc.Flush()
}

func (ctrl *controller) exportDevisXML(zw *zip.Writer) error {
	list, err := ctrl.model.LoadAllDevis()
	if err != nil {
		return fmt.Errorf("cannot load devis for export: %w", err)
	}
	f, err := zw.Create("devis.xml")
	if err != nil {
		return fmt.Errorf("cannot create devis.xml in ZIP: %w", err)
	}

	export := ExportDevis{Version: "1", Devis: make([]APIDevis, 0, len(list))}
	for _, dv := range list {
		// Reload with lignes so the export is complete.
		full, err := ctrl.model.LoadDevis(dv.ID)
		if err != nil {
			return fmt.Errorf("cannot load devis %d for export: %w", dv.ID, err)
		}
		export.Devis = append(export.Devis, devisToAPI(full))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode devis.xml: %w", err)
	}
	return enc.Flush()
}

func (ctrl *controller) exportFacturesXML(zw *zip.Writer) error {
	list, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return fmt.Errorf("cannot load factures for export: %w", err)
	}
	f, err := zw.Create("factures.xml")
	if err != nil {
		return fmt.Errorf("cannot create factures.xml in ZIP: %w", err)
	}

	export := ExportFactures{Version: "1", Factures: make([]APIFacture, 0, len(list))}
	for _, fa := range list {
		full, err := ctrl.model.LoadFacture(fa.ID)
		if err != nil {
			return fmt.Errorf("cannot load facture %d for export: %w", fa.ID, err)
		}
		export.Factures = append(export.Factures, factureToAPI(full))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode factures.xml: %w", err)
	}
	return enc.Flush()
}

func (ctrl *controller) exportParametresXML(zw *zip.Writer) error {
	p, err := ctrl.model.LoadParametres()
	if err != nil {
		return fmt.Errorf("cannot load parametres for export: %w", err)
	}
	f, err := zw.Create("parametres.xml")
	if err != nil {
		return fmt.Errorf("cannot create parametres.xml in ZIP: %w", err)
	}

	export := ExportParametres{
		Version:               "1",
		NomEntreprise:         p.NomEntreprise,
		Adresse:               p.Adresse,
		CodePostal:            p.CodePostal,
		Ville:                 p.Ville,
		Telephone:             p.Telephone,
		Email:                 p.Email,
		SIRET:                 p.SIRET,
		NumeroTVA:             p.NumeroTVA,
		TauxTVADefaut:         p.TauxTVADefaut.String(),
		DelaiPaiementDefaut:   p.DelaiPaiementDefaut,
		ConditionsGenerales:   p.ConditionsGenerales,
		ConditionsReglement:   p.ConditionsReglement,
		NumeroDevisTemplate:   p.NumeroDevisTemplate,
		NumeroFactureTemplate: p.NumeroFactureTemplate,
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode parametres.xml: %w", err)
	}
	return enc.Flush()
}

// exportFacturXFiles adds one EN 16931 XML per issued facture under
// facturx/ in the archive. Drafts and cancelled factures are skipped.
func (ctrl *controller) exportFacturXFiles(zw *zip.Writer) error {
	list, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return fmt.Errorf("cannot load factures for export: %w", err)
	}
	for _, fa := range list {
		if fa.Statut == model.FactureBrouillon || fa.Statut == model.FactureAnnulee {
			continue
		}
		full, err := ctrl.model.LoadFacture(fa.ID)
		if err != nil {
			return fmt.Errorf("cannot load facture %d for export: %w", fa.ID, err)
		}
		w, err := zw.Create("facturx/" + full.Numero + ".xml")
		if err != nil {
			return fmt.Errorf("cannot create facturx file for %s: %w", full.Numero, err)
		}
		if err := ctrl.model.WriteFacturX(full, w); err != nil {
			return fmt.Errorf("cannot write facturx for %s: %w", full.Numero, err)
		}
	}
	return nil
}

// exportDocumentBlobs walks the document store and adds every stored file
// under documents/ in the archive.
func (ctrl *controller) exportDocumentBlobs(zw *zip.Writer) error {
	baseDir := filepath.Join(ctrl.model.Config.Basedir, "documents")

	fi, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat documents dir: %w", err)
	}
	if !fi.IsDir() {
		return nil
	}

	return filepath.WalkDir(baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		w, err := zw.Create(filepath.ToSlash(filepath.Join("documents", rel)))
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("add document %q: %w", rel, err)
		}
		return nil
	})
}

// exportFacturesExcel builds an XLSX workbook with one sheet of clients and
// one of factures.
func (ctrl *controller) exportFacturesExcel(c echo.Context) error {
	clients, err := ctrl.model.LoadAllClients()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des clients")
	}
	factures, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des factures")
	}

	wb := excelize.NewFile()
	defer wb.Close()

	const clientSheet = "Clients"
	wb.SetSheetName("Sheet1", clientSheet)
	clientHeader := []any{"ID", "Raison sociale", "Contact", "Email", "Ville", "SIRET", "N° TVA", "Actif"}
	_ = wb.SetSheetRow(clientSheet, "A1", &clientHeader)
	for i, cl := range clients {
		row := []any{cl.ID, cl.RaisonSociale, cl.Contact, cl.Email, cl.Ville, cl.SIRET, cl.NumeroTVA, cl.Actif}
		_ = wb.SetSheetRow(clientSheet, fmt.Sprintf("A%d", i+2), &row)
	}

	const factureSheet = "Factures"
	if _, err := wb.NewSheet(factureSheet); err != nil {
		return ErrInternal(err)
	}
	factureHeader := []any{"Numéro", "Client", "Émise le", "Échéance", "Statut", "HT", "TVA", "TTC", "Payé", "Reste"}
	_ = wb.SetSheetRow(factureSheet, "A1", &factureHeader)
	for i, f := range factures {
		row := []any{
			f.Numero,
			f.Client.RaisonSociale,
			f.DateEmission.Format("02/01/2006"),
			f.DateEcheance.Format("02/01/2006"),
			libelleStatutFacture(f.Statut),
			f.MontantHT.InexactFloat64(),
			f.MontantTVA.InexactFloat64(),
			f.MontantTTC.InexactFloat64(),
			f.MontantPaye.InexactFloat64(),
			f.ResteAPayer().InexactFloat64(),
		}
		_ = wb.SetSheetRow(factureSheet, fmt.Sprintf("A%d", i+2), &row)
	}

	res := c.Response()
	filename := "factures_" + time.Now().Format("2006-01-02") + ".xlsx"
	res.Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	res.WriteHeader(http.StatusOK)
	return wb.Write(res)
}

// exportFacturesCSV writes the facture list as semicolon-separated CSV with
// a UTF-8 BOM so spreadsheet software opens it correctly.
func (ctrl *controller) exportFacturesCSV(c echo.Context) error {
	factures, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des factures")
	}

	res := c.Response()
	filename := "factures_" + time.Now().Format("2006-01-02") + ".csv"
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	w := csv.NewWriter(res)
	w.Comma = ';'

	if err := w.Write([]string{"Numéro", "Client", "Émise le", "Échéance", "Statut", "HT", "TTC", "Payé"}); err != nil {
		return err
	}

	for _, f := range factures {
		row := []string{
			f.Numero,
			f.Client.RaisonSociale,
			f.DateEmission.Format("02/01/2006"),
			f.DateEcheance.Format("02/01/2006"),
			libelleStatutFacture(f.Statut),
			f.MontantHT.StringFixed(2),
			f.MontantTTC.StringFixed(2),
			f.MontantPaye.StringFixed(2),
		}
		for i := range row {
			if !utf8.ValidString(row[i]) {
				row[i] = strings.ToValidUTF8(row[i], "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
