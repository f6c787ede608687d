package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// previewPNG renders the first page of the given PDF and serves it as PNG.
// The PNG is regenerated on every call; the PDF itself is reused when it
// already exists on disk.
func (ctrl *controller) previewPNG(c echo.Context, pdfPath string, generate func() error) error {
	if _, err := os.Stat(pdfPath); err != nil {
		if !os.IsNotExist(err) {
			return ErrInternal(err)
		}
		if err := generate(); err != nil {
			return ErrInvalid(err, "Erreur lors de la génération du PDF")
		}
	}

	outDir := filepath.Join(ctrl.model.Config.Basedir, "previews")
	if err := ensureDir(outDir); err != nil {
		return ErrInternal(err)
	}
	sizes, pngs, err := renderPDFToPNGs(pdfPath, outDir, 144, 1)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotImplemented,
			"L'aperçu PDF n'est pas disponible sur ce serveur.")
	}
	if len(pngs) == 0 {
		return ErrInternal(fmt.Errorf("no preview page rendered for %s", pdfPath))
	}
	c.Response().Header().Set("X-Page-Size-Cm",
		fmt.Sprintf("%.2fx%.2f", round2(sizes[0][0]), round2(sizes[0][1])))
	return c.File(pngs[0])
}

func (ctrl *controller) devisPreview(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	pdfPath := filepath.Join(ctrl.model.Config.Basedir, "pdf", fmt.Sprintf("devis_%d.pdf", dv.ID))
	return ctrl.previewPNG(c, pdfPath, func() error {
		if err := ensureDir(filepath.Dir(pdfPath)); err != nil {
			return err
		}
		return ctrl.model.CreateDevisPDF(dv, pdfPath, logger)
	})
}

func (ctrl *controller) facturePreview(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	pdfPath := filepath.Join(ctrl.model.Config.Basedir, "pdf", fmt.Sprintf("facture_%d.pdf", f.ID))
	return ctrl.previewPNG(c, pdfPath, func() error {
		if err := ensureDir(filepath.Dir(pdfPath)); err != nil {
			return err
		}
		return ctrl.model.CreateFacturePDF(f, pdfPath, logger)
	})
}
