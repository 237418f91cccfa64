package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/config"
	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/internal/export"
	"github.com/taxlien-works/harvest/internal/extract"
	"github.com/taxlien-works/harvest/internal/navigator"
	"github.com/taxlien-works/harvest/internal/ocr"
	"github.com/taxlien-works/harvest/pkg/models"
)

// Navigator is the portal-driving surface the orchestrator needs.
type Navigator interface {
	Establish(ctx context.Context) error
	OpenSearch(ctx context.Context, crit models.SearchCriterion) error
	NextPage(ctx context.Context) (*models.ResultsPage, error)
	OpenDetail(ctx context.Context, url string) (*models.RawRecordPage, error)
	BrowserCtx() context.Context
}

// Parser turns raw detail pages into records.
type Parser interface {
	Parse(page *models.RawRecordPage) (*models.Record, error)
	Viewer(page *models.RawRecordPage) *models.ViewerRef
}

// Recognizer runs character recognition over a captured page image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*extract.Source, error)
}

// Renderer captures the document viewer and writes artifacts.
type Renderer interface {
	Capture(ctx context.Context, viewerURL string) ([]byte, error)
	WriteArtifact(jobID, parcelID string, png []byte) (string, error)
}

// Exporter flushes collected records to the job's export file.
type Exporter interface {
	Flush(agg *export.Aggregator, jobID string) (string, error)
}

// Orchestrator runs one extraction job as a sequential pipeline: fetch page,
// parse, optical fallback when the structured parse comes up empty, render
// the artifact, aggregate, and flush once pagination is exhausted.
type Orchestrator struct {
	cfg       *config.Config
	nav       Navigator
	parser    Parser
	ocrEngine Recognizer
	extractor ocr.Extractor
	renderer  Renderer
	exporter  Exporter
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg *config.Config, nav Navigator, parser Parser, rec Recognizer, renderer Renderer, exporter Exporter) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		nav:       nav,
		parser:    parser,
		ocrEngine: rec,
		renderer:  renderer,
		exporter:  exporter,
	}
}

// Run executes the job to a terminal state. The cancelled callback is
// polled at record boundaries only, so an in-flight record always finishes
// before the job stops. onProgress receives state snapshots at a bounded
// interval.
func (o *Orchestrator) Run(ctx context.Context, jobID string, crit models.SearchCriterion, cancelled func() bool, onProgress func(models.JobState)) models.JobState {
	state := models.JobState{
		ID:        jobID,
		Criterion: crit,
		Status:    models.StatusRunning,
		StartedAt: time.Now(),
	}
	agg := export.NewAggregator()
	lastReport := time.Time{}

	report := func(force bool) {
		if onProgress == nil {
			return
		}
		if force || time.Since(lastReport) >= o.cfg.ProgressInterval {
			lastReport = time.Now()
			onProgress(state)
		}
	}
	fail := func(err error) models.JobState {
		state.Status = models.StatusFailed
		state.Error = err.Error()
		state.FinishedAt = time.Now()
		log.Error().Err(err).Str("job", jobID).Msg("Job failed")
		report(true)
		return state
	}

	log.Info().Str("job", jobID).Str("name", crit.SearchName).Str("county", crit.County).Msg("Job started")
	report(true)

	if err := o.nav.Establish(ctx); err != nil {
		return fail(fmt.Errorf("session establishment: %w", err))
	}
	if err := o.nav.OpenSearch(ctx, crit); err != nil {
		return fail(fmt.Errorf("search submission: %w", err))
	}

pages:
	for state.PagesProcessed < o.cfg.PageBudget {
		if cancelled() {
			state.Status = models.StatusCancelled
			break
		}

		page, err := o.nav.NextPage(ctx)
		if errors.Is(err, navigator.ErrEndOfResults) {
			break
		}
		if err != nil {
			// NextPage already retried; a page-level navigation failure that
			// survives the retry bound is fatal.
			return fail(fmt.Errorf("results page %d: %w", state.PagesProcessed+1, err))
		}
		state.PagesProcessed++

		for _, detailURL := range page.DetailURLs {
			if cancelled() {
				state.Status = models.StatusCancelled
				break pages
			}
			if err := o.processRecord(ctx, jobID, detailURL, agg, &state); err != nil {
				return fail(err)
			}
			report(false)
		}
	}

	path, err := o.exporter.Flush(agg, jobID)
	if err != nil {
		return fail(fmt.Errorf("export flush: %w", err))
	}
	state.ExportPath = path

	if state.Status != models.StatusCancelled {
		if state.RecordsFailed > 0 {
			state.Status = models.StatusPartiallyFailed
		} else {
			state.Status = models.StatusCompleted
		}
	}
	state.FinishedAt = time.Now()
	log.Info().
		Str("job", jobID).
		Str("status", string(state.Status)).
		Int("pages", state.PagesProcessed).
		Int("records", state.RecordsFound).
		Int("failed", state.RecordsFailed).
		Msg("Job finished")
	report(true)
	return state
}

// processRecord runs one detail page through the full pipeline. Per-record
// failures are accounted into the outcome report and do not stop the job;
// the returned error is non-nil only for job-fatal conditions.
func (o *Orchestrator) processRecord(ctx context.Context, jobID, detailURL string, agg *export.Aggregator, state *models.JobState) error {
	exclude := func(parcelID string, via models.Provenance, err error) {
		state.RecordsFailed++
		state.Outcomes = append(state.Outcomes, models.RecordOutcome{
			ParcelID:  parcelID,
			SourceURL: detailURL,
			Outcome:   models.OutcomeExcluded,
			Reason:    string(errs.KindOf(err)),
			Via:       via,
		})
		log.Warn().Err(err).Str("url", detailURL).Msg("Record excluded")
	}

	page, err := o.nav.OpenDetail(ctx, detailURL)
	if err != nil {
		if errs.SeverityOf(err) == errs.TransientFatal {
			return fmt.Errorf("detail page %s: %w", detailURL, err)
		}
		exclude("", "", err)
		return nil
	}

	var png []byte
	rec, err := o.parser.Parse(page)
	if err != nil {
		exclude("", models.ProvenanceStructured, err)
		return nil
	}
	if rec == nil {
		// Structured tables carried nothing; read the document image instead.
		// Recognition runs at most once per record.
		rec, png, err = o.opticalFallback(ctx, page)
		if err != nil {
			exclude("", models.ProvenanceOCR, err)
			return nil
		}
	}

	if png == nil {
		png, err = o.capture(rec.Viewer)
		if err != nil {
			exclude(rec.ParcelID, rec.Provenance, err)
			return nil
		}
	}
	artifact, err := o.renderer.WriteArtifact(jobID, rec.ParcelID, png)
	if err != nil {
		exclude(rec.ParcelID, rec.Provenance, err)
		return nil
	}
	rec.Artifact = artifact

	agg.Upsert(rec)
	state.RecordsFound = agg.Len()
	state.Outcomes = append(state.Outcomes, models.RecordOutcome{
		ParcelID:  rec.ParcelID,
		SourceURL: detailURL,
		Outcome:   models.OutcomeExported,
		Via:       rec.Provenance,
	})
	return nil
}

// opticalFallback renders the record's document image and extracts fields
// from it. The captured image is returned so the artifact does not require
// a second render.
func (o *Orchestrator) opticalFallback(ctx context.Context, page *models.RawRecordPage) (*models.Record, []byte, error) {
	viewer := o.parser.Viewer(page)
	if viewer == nil || viewer.URL == "" {
		return nil, nil, errs.RenderFailed(fmt.Errorf("page has no document viewer reference"))
	}

	png, err := o.capture(viewer)
	if err != nil {
		return nil, nil, err
	}
	src, err := o.ocrEngine.Recognize(ctx, png)
	if err != nil {
		return nil, nil, err
	}
	rec, err := o.extractor.Extract(src, viewer, page.URL)
	if err != nil {
		return nil, nil, err
	}
	return rec, png, nil
}

func (o *Orchestrator) capture(viewer *models.ViewerRef) ([]byte, error) {
	if viewer == nil || viewer.URL == "" {
		return nil, errs.RenderFailed(fmt.Errorf("record has no document viewer reference"))
	}
	renderCtx, cancel := context.WithTimeout(o.nav.BrowserCtx(), o.cfg.NavTimeout)
	defer cancel()
	return o.renderer.Capture(renderCtx, viewer.URL)
}
