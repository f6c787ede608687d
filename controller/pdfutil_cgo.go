//go:build cgo
// +build cgo

package controller

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
)

// renderPDFToPNGs renders up to maxPages pages of pdfPath into PNG files in
// outDir and returns the page sizes in centimeters alongside the file paths.
func renderPDFToPNGs(pdfPath, outDir string, dpi, maxPages int) (sizes [][2]float64, pngPaths []string, err error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, nil, err
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, nil, err
		}
		out := filepath.Join(outDir, fmt.Sprintf("page%d.png", i+1))
		if err := savePNG(out, img); err != nil {
			return nil, nil, err
		}
		b := img.Bounds()
		sizes = append(sizes, [2]float64{
			float64(b.Dx()) / float64(dpi) * 2.54,
			float64(b.Dy()) / float64(dpi) * 2.54,
		})
		pngPaths = append(pngPaths, out)
	}
	return sizes, pngPaths, nil
}

func savePNG(path string, m image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
