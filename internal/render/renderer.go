package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/errs"
)

// Renderer captures the portal's document viewer and writes per-record PDF
// artifacts. Capture and WriteArtifact are split so the same raster can
// feed both the artifact and the optical fallback.
type Renderer struct {
	artifactDir string
}

// NewRenderer returns a renderer writing artifacts under dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{artifactDir: dir}
}

// ArtifactDir returns the directory artifacts are written to.
func (r *Renderer) ArtifactDir() string {
	return r.artifactDir
}

// Capture opens the viewer page in the given browser context, fits and
// orients the document, and screenshots the image canvas as PNG. The
// viewer renders into a canvas inside its clipper div; when the canvas
// cannot be isolated a full-page screenshot stands in.
func (r *Renderer) Capture(ctx context.Context, viewerURL string) ([]byte, error) {
	if viewerURL == "" {
		return nil, errs.RenderFailed(fmt.Errorf("record has no viewer reference"))
	}

	err := chromedp.Run(ctx,
		chromedp.Navigate(viewerURL),
		chromedp.WaitVisible(`div.vtm_imageClipper`, chromedp.ByQuery),
	)
	if err != nil {
		return nil, errs.RenderFailed(err).WithURL(viewerURL)
	}

	// Fit the document to the window and square it up before the shot.
	// Both controls are cosmetic; failures just mean a less tidy image.
	if err := chromedp.Run(ctx,
		chromedp.SetValue(`td.vtm_zoomSelectCell select`, "fitwindow", chromedp.ByQuery),
		chromedp.Sleep(time.Second),
	); err != nil {
		log.Debug().Err(err).Msg("Viewer zoom control not adjustable")
	}
	if err := chromedp.Run(ctx,
		chromedp.Click(`img[title="Rotate Right"]`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
	); err != nil {
		log.Debug().Err(err).Msg("Viewer rotate control not clickable")
	}

	var png []byte
	err = chromedp.Run(ctx, chromedp.Screenshot(`div.vtm_imageClipper canvas`, &png, chromedp.ByQuery))
	if err != nil {
		log.Debug().Err(err).Msg("Canvas screenshot failed, capturing full page")
		err = chromedp.Run(ctx, chromedp.FullScreenshot(&png, 90))
	}
	if err != nil || len(png) == 0 {
		return nil, errs.RenderFailed(fmt.Errorf("viewer screenshot failed: %w", err)).WithURL(viewerURL)
	}
	return png, nil
}

// ArtifactName returns the deterministic artifact filename for a record.
func ArtifactName(jobID, parcelID string) string {
	return fmt.Sprintf("%s_%s.pdf", jobID, parcelID)
}

// WriteArtifact converts a captured PNG into a single-page PDF named after
// the job and parcel. Re-rendering the same record replaces the previous
// artifact in one rename.
func (r *Renderer) WriteArtifact(jobID, parcelID string, png []byte) (string, error) {
	if err := os.MkdirAll(r.artifactDir, 0o755); err != nil {
		return "", errs.RenderFailed(err)
	}

	tmpPNG, err := os.CreateTemp(r.artifactDir, "capture-*.png")
	if err != nil {
		return "", errs.RenderFailed(err)
	}
	defer os.Remove(tmpPNG.Name())
	if _, err := tmpPNG.Write(png); err != nil {
		tmpPNG.Close()
		return "", errs.RenderFailed(err)
	}
	tmpPNG.Close()

	final := filepath.Join(r.artifactDir, ArtifactName(jobID, parcelID))
	tmpPDF := final + ".tmp"
	defer os.Remove(tmpPDF)

	if err := api.ImportImagesFile([]string{tmpPNG.Name()}, tmpPDF, nil, nil); err != nil {
		return "", errs.RenderFailed(fmt.Errorf("image to PDF conversion failed: %w", err))
	}
	if err := os.Rename(tmpPDF, final); err != nil {
		return "", errs.RenderFailed(err)
	}

	log.Debug().Str("artifact", final).Msg("Wrote document artifact")
	return final, nil
}
