package model

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether s is a terminal status; the record must never
// transition out of a terminal status once reached.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

type CreditKind string

const (
	CreditKindFree    CreditKind = "free"
	CreditKindPaid    CreditKind = "paid"
	CreditKindRefund  CreditKind = "refund"
	CreditKindPurchase CreditKind = "purchase"
)

// CreditDebit records what a job was charged at admission time.
type CreditDebit struct {
	Amount int64
	Kind   CreditKind
}

// Timings captures the per-stage duration of the worker pipeline, in milliseconds.
type Timings struct {
	ClassifyMs int64
	PromptMs   int64
	RestoreMs  int64
	TotalMs    int64
}

// ErrorKind classifies a terminal job failure for the client-visible error block.
type ErrorKind string

const (
	ErrorKindModeration ErrorKind = "moderation"
	ErrorKindProvider   ErrorKind = "provider"
	ErrorKindInternal   ErrorKind = "internal"
	ErrorKindTimeout    ErrorKind = "timeout"
)

type JobError struct {
	Kind    ErrorKind
	Message string
}

// PreprocessRecord lists the operations applied to the source image at admission.
type PreprocessRecord struct {
	AutoOriented    bool
	ResizedTo       int // longest side in px, 0 if untouched
	ReencodedJPEG   bool
	MetadataStripped bool
	ColorProfile    string // "sRGB"
}

// ModerationVerdict is the frozen output of the moderation collaborator.
type ModerationVerdict struct {
	Allowed bool
	Flags   []string
}

// ProviderMetadata is what the generative provider returns alongside restored bytes.
type ProviderMetadata struct {
	RequestID      string
	BilledUnits    int64
	EstimatedCost  float64
	PromptTokens   int
}

// Job is the durable record of one restoration request, owned by the control
// plane for its whole lifecycle (spec.md §3, §5). Workers only ever merge the
// fields they own; they never touch CreditDebit or Moderation.
type Job struct {
	ID        string
	OwnerID   string
	Status    JobStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	Attempt int

	SourceObject string // blob object name the source image was persisted under
	UserPrompt   string

	Preprocess PreprocessRecord
	Moderation ModerationVerdict
	Debit      CreditDebit

	Classification map[string]float64 // degradation kind -> confidence
	EnhancedPrompt string
	Provider       ProviderMetadata
	Timings        Timings

	ResultObject string
	Error        *JobError
}

// Projection is the externally visible view returned by GET /jobs/{id} and
// the push stream (spec.md §4.8). DownloadURL/DownloadExpiresAt/Filename are
// only populated when Status == succeeded.
type Projection struct {
	ID        string     `json:"job_id"`
	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Credit CreditDebit `json:"credit"`

	Timings        *Timings           `json:"timings,omitempty"`
	Prompt         string             `json:"prompt,omitempty"`
	Classification map[string]float64 `json:"classification,omitempty"`
	Moderation     *ModerationVerdict `json:"moderation,omitempty"`

	DownloadURL       string     `json:"download_url,omitempty"`
	DownloadExpiresAt *time.Time `json:"download_expires_at,omitempty"`
	Filename          string     `json:"filename,omitempty"`

	Error *JobError `json:"error,omitempty"`
}

// ToProjection builds the client-visible view of a job. download is nil
// unless the caller has already minted a fresh signed URL for a succeeded job.
func (j *Job) ToProjection(downloadURL, filename string, downloadExpiresAt *time.Time) Projection {
	p := Projection{
		ID:        j.ID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Credit:    j.Debit,
		Prompt:    j.EnhancedPrompt,
		Error:     j.Error,
	}
	if len(j.Classification) > 0 {
		p.Classification = j.Classification
	}
	if j.Status != JobStatusQueued {
		t := j.Timings
		p.Timings = &t
		mv := j.Moderation
		p.Moderation = &mv
	}
	if j.Status == JobStatusSucceeded {
		p.DownloadURL = downloadURL
		p.Filename = filename
		p.DownloadExpiresAt = downloadExpiresAt
	}
	return p
}
