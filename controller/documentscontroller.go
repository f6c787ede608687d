package controller

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
)

// typesDocument are the accepted categories for client uploads.
var typesDocument = []string{"bulletin", "contrat", "attestation", "courrier", "autre"}

func (ctrl *controller) documentInit(e *echo.Echo) {
	g := e.Group("/documents")
	// The blob route is deliberately outside the auth middleware: the signed
	// URL itself is the credential.
	g.GET("/blob/*", ctrl.documentBlob)

	ag := g.Group("", ctrl.authMiddleware)
	ag.GET("/client/:clientid", ctrl.documentList)
	ag.POST("/client/:clientid", ctrl.documentUpload)
	ag.GET("/download/:id", ctrl.documentDownload)
	ag.DELETE("/delete/:id", ctrl.documentDelete)
}

func (ctrl *controller) documentList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Documents")
	client, err := ctrl.model.LoadClient(c.Param("clientid"))
	if err != nil {
		return ErrNotFound(err)
	}
	docs, err := ctrl.model.LoadDocumentsForClient(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des documents")
	}
	used, err := ctrl.model.Blobs.UsedBytes(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du calcul de l'espace utilisé")
	}
	m["title"] = "Documents de " + client.RaisonSociale
	m["client"] = client
	m["documents"] = docs
	m["types"] = typesDocument
	m["used"] = humanSize(used)
	m["quota"] = humanSize(model.MaxQuota)
	m["usedPercent"] = used * 100 / model.MaxQuota
	return c.Render(http.StatusOK, "documentlist.html", m)
}

func (ctrl *controller) documentUpload(c echo.Context) error {
	client, err := ctrl.model.LoadClient(c.Param("clientid"))
	if err != nil {
		return ErrNotFound(err)
	}
	fh, err := c.FormFile("fichier")
	if err != nil {
		_ = AddFlash(c, "warning", "Aucun fichier sélectionné.")
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/documents/client/%d", client.ID))
	}

	typeDocument := strings.TrimSpace(c.FormValue("typedocument"))
	if !contientType(typeDocument) {
		typeDocument = "autre"
	}
	annee, _ := strconv.Atoi(c.FormValue("annee"))
	mois, _ := strconv.Atoi(c.FormValue("mois"))
	if mois < 1 || mois > 12 {
		mois = 0
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	chemin, nom := model.CheminDocument(client.ID, typeDocument, annee, mois, ext)

	typeMime := fh.Header.Get(echo.HeaderContentType)
	if typeMime == "" {
		typeMime = mime.TypeByExtension(ext)
	}

	src, err := fh.Open()
	if err != nil {
		return ErrInvalid(err, "Erreur lors de la lecture du fichier")
	}
	defer src.Close()

	var uploadedBy string
	if uid, ok := c.Get("uid").(uint); ok {
		if u, err := ctrl.model.GetUserByID(uid); err == nil {
			uploadedBy = u.Email
		}
	}
	doc := &model.Document{
		ClientID:      client.ID,
		NomFichier:    nom,
		NomOriginal:   fh.Filename,
		CheminStorage: chemin,
		TailleOctets:  fh.Size,
		TypeMime:      typeMime,
		Extension:     ext,
		TypeDocument:  typeDocument,
		Annee:         annee,
		Mois:          mois,
		Description:   strings.TrimSpace(c.FormValue("description")),
		UploadedBy:    uploadedBy,
	}
	if err := ctrl.model.StoreDocument(doc, src); err != nil {
		if errors.Is(err, model.ErrQuotaDepassee) {
			_ = AddFlash(c, "warning",
				fmt.Sprintf("Espace de stockage insuffisant (limite %s par client).", humanSize(model.MaxQuota)))
			return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/documents/client/%d", client.ID))
		}
		return ErrInvalid(err, "Erreur lors de l'enregistrement du document")
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Document %s enregistré.", fh.Filename))
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/documents/client/%d", client.ID))
}

// documentDownload redirects to a freshly signed blob URL.
func (ctrl *controller) documentDownload(c echo.Context) error {
	doc, err := ctrl.model.LoadDocument(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	return c.Redirect(http.StatusSeeOther, ctrl.model.DocumentURL(doc))
}

// documentBlob serves the bytes behind a signed URL. Expired or tampered
// links get 410 so clients know to request a fresh one.
func (ctrl *controller) documentBlob(c echo.Context) error {
	path := c.Param("*")
	if err := ctrl.model.Blobs.VerifySignedPath(path, c.QueryParam("exp"), c.QueryParam("sig")); err != nil {
		return echo.NewHTTPError(http.StatusGone, "Ce lien de téléchargement a expiré.")
	}
	f, err := ctrl.model.Blobs.Open(path)
	if err != nil {
		return ErrNotFound(err)
	}
	defer f.Close()

	typeMime := mime.TypeByExtension(filepath.Ext(path))
	if typeMime == "" {
		typeMime = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	return c.Stream(http.StatusOK, typeMime, f)
}

func (ctrl *controller) documentDelete(c echo.Context) error {
	doc, err := ctrl.model.LoadDocument(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	if err := ctrl.model.DeleteDocument(doc); err != nil {
		return ErrInvalid(err, "Erreur lors de la suppression du document")
	}
	_ = AddFlash(c, "success", "Document supprimé.")
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/documents/client/%d", doc.ClientID))
}

func contientType(t string) bool {
	for _, v := range typesDocument {
		if v == t {
			return true
		}
	}
	return false
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d o", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %co", float64(n)/float64(div), "KMGTPE"[exp])
}
