package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field is an optional string value. Absent fields stay distinguishable from
// fields whose source text happens to be empty.
type Field struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// Some returns a present Field holding v.
func Some(v string) Field {
	return Field{Value: v, Present: true}
}

// Absent returns the explicit absent marker.
func Absent() Field {
	return Field{}
}

// Or returns the field's value, or fallback when absent.
func (f Field) Or(fallback string) string {
	if f.Present {
		return f.Value
	}
	return fallback
}

// Amount is an optional non-negative currency value.
type Amount struct {
	Value   decimal.Decimal `json:"value"`
	Present bool            `json:"present"`
}

// SomeAmount wraps d as a present Amount.
func SomeAmount(d decimal.Decimal) Amount {
	return Amount{Value: d, Present: true}
}

// Provenance records which extraction path produced a record's fields.
type Provenance string

const (
	ProvenanceStructured Provenance = "structured"
	ProvenanceOCR        Provenance = "ocr"
)

// SearchCriterion describes one name search on the records portal.
// It is produced by the caller (CLI flags or dashboard) and read-only here.
type SearchCriterion struct {
	County          string `json:"county"`           // county option value on the search form
	PartyType       string `json:"party_type"`       // e.g. "2" (direct party / debtor)
	InstrumentType  string `json:"instrument_type"`  // e.g. lien instrument code
	SearchName      string `json:"search_name"`      // party name to search
	FromDate        string `json:"from_date"`        // MM/DD/YYYY as the form expects
	ToDate          string `json:"to_date"`          // MM/DD/YYYY
	IncludeCounties bool   `json:"include_counties"` // include surrounding counties
	MaxRows         string `json:"max_rows"`         // rows per results page
	TableType       string `json:"table_type"`
}

// ViewerRef identifies the document image behind a detail page. The values
// come from the inline viewer script on the page.
type ViewerRef struct {
	LienID string
	County string
	Book   string
	Page   string
	UserID string
	AppID  string
	URL    string
}

// RawRecordPage is the loaded representation of one detail page. It is
// produced by the navigator and consumed exactly once by the parser or the
// optical fallback, then discarded.
type RawRecordPage struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// ResultsPage is one page of search results: the set of detail page
// references it exposes plus a signature used to detect pagination loops.
type ResultsPage struct {
	URL        string
	DetailURLs []string
	Signature  string
	HasNext    bool
}

// Record is the canonical, schema-conformant representation of one lien
// record, regardless of which extraction path produced it.
type Record struct {
	ParcelID    string     `json:"parcel_id"`
	County      Field      `json:"county"`
	Instrument  Field      `json:"instrument"`
	Book        Field      `json:"book"`
	Page        Field      `json:"page"`
	RecordDate  Field      `json:"record_date"`
	Address     Field      `json:"address"`
	ZipCode     Field      `json:"zip_code"`
	Description Field      `json:"description"`
	TotalDue    Amount     `json:"total_due"`
	DescAmount  Amount     `json:"desc_amount"` // amount lifted from the description text
	Debtors     []string   `json:"debtors"`
	Claimants   []string   `json:"claimants"`
	Viewer      *ViewerRef `json:"-"`
	SourceURL   string     `json:"source_url"`
	Artifact    string     `json:"artifact"` // path of the rendered document, set by the renderer
	Provenance  Provenance `json:"provenance"`
}

// Empty reports whether no extractable field was located. The orchestrator
// treats an empty structured parse as the signal to run the optical fallback.
func (r *Record) Empty() bool {
	if r == nil {
		return true
	}
	return !r.County.Present && !r.Instrument.Present && !r.RecordDate.Present &&
		!r.Description.Present && !r.Address.Present && !r.TotalDue.Present &&
		len(r.Debtors) == 0 && len(r.Claimants) == 0
}

// JobStatus is the lifecycle state of one extraction job.
type JobStatus string

const (
	StatusPending         JobStatus = "pending"
	StatusRunning         JobStatus = "running"
	StatusCompleted       JobStatus = "completed"
	StatusPartiallyFailed JobStatus = "partially_failed"
	StatusFailed          JobStatus = "failed"
	StatusCancelled       JobStatus = "cancelled"
)

// Terminal reports whether the status will no longer change.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyFailed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// OutcomeKind classifies what happened to one fetched record.
type OutcomeKind string

const (
	OutcomeExported OutcomeKind = "exported"
	OutcomeExcluded OutcomeKind = "excluded"
)

// RecordOutcome is one entry in the per-record report surfaced to operators.
// Every fetched record either appears in the export or here with a reason.
type RecordOutcome struct {
	ParcelID  string      `json:"parcel_id,omitempty"`
	SourceURL string      `json:"source_url"`
	Outcome   OutcomeKind `json:"outcome"`
	Reason    string      `json:"reason,omitempty"` // error kind for exclusions
	Via       Provenance  `json:"via,omitempty"`
}

// JobState is the externally visible state of a job. Snapshots of it are
// returned by GetJobState even while the job is running.
type JobState struct {
	ID             string          `json:"id"`
	Criterion      SearchCriterion `json:"criterion"`
	Status         JobStatus       `json:"status"`
	PagesProcessed int             `json:"pages_processed"`
	RecordsFound   int             `json:"records_found"`
	RecordsFailed  int             `json:"records_failed"`
	Outcomes       []RecordOutcome `json:"outcomes,omitempty"`
	ExportPath     string          `json:"export_path,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at,omitzero"`
}
