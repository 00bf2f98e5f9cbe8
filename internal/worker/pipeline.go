// File: internal/worker/pipeline.go
package worker

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/imaging"
	"github.com/imagerestore/controlplane/internal/infra/metrics"
	"github.com/imagerestore/controlplane/internal/infra/tokencount"
	"github.com/imagerestore/controlplane/internal/infra/tracing"
	"github.com/imagerestore/controlplane/internal/worker/classify"
	"github.com/imagerestore/controlplane/internal/worker/prompt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result carries everything the caller needs to write the succeeded fields
// of a job record (spec.md §4.7 step 8).
type Result struct {
	Classification map[string]float64
	EnhancedPrompt string
	Provider       model.ProviderMetadata
	Timings        model.Timings
	ResultObject   string
}

// Pipeline runs the per-task restoration sequence: materialize, classify,
// enhance, invoke provider, store. It never writes job status itself;
// the engine that owns the queue lifecycle does that (spec.md §4.7 step 9:
// "do not refund from inside the worker").
type Pipeline struct {
	blobStore  adapter.BlobStore
	classifier *classify.Classifier
	provider   adapter.RestorationProvider
	tokens     *tokencount.Estimator
	logger     *zerolog.Logger
}

func NewPipeline(blobStore adapter.BlobStore, classifier *classify.Classifier, provider adapter.RestorationProvider, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{blobStore: blobStore, classifier: classifier, provider: provider, tokens: &tokencount.Estimator{}, logger: logger}
}

// Process runs steps 3 through 7 of the worker pipeline for one task. ctx
// must already carry the resumed trace context (step 1) and the caller is
// responsible for step 2 (marking the job running) before calling Process.
func (p *Pipeline) Process(ctx context.Context, task *model.Task) (Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "worker.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", task.JobID),
		attribute.String("owner.id", task.OwnerID),
		attribute.Int("attempt", task.Attempt),
	)

	totalStart := time.Now()

	raw, err := p.materialize(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialize failed")
		return Result{}, err
	}

	contentType, _ := imaging.SniffContentType(raw)
	img, _, decodeErr := image.Decode(bytes.NewReader(raw))
	classifyStart := time.Now()
	var classification map[string]float64
	if decodeErr != nil {
		p.logger.Warn().Err(decodeErr).Str("job_id", task.JobID).Msg("classifier could not decode image, using conservative defaults")
		classification = conservativeClassification()
	} else {
		classification = p.classifier.Classify(img, contentType == "image/jpeg")
	}
	classifyMs := time.Since(classifyStart).Milliseconds()
	metrics.ObserveStageLatency("classify", classifyMs)

	promptStart := time.Now()
	enhanced := prompt.Enhance(classification, task.Prompt)
	promptMs := time.Since(promptStart).Milliseconds()
	metrics.ObserveStageLatency("prompt", promptMs)

	restoreStart := time.Now()
	restored, err := p.provider.Restore(ctx, enhanced, raw)
	restoreMs := time.Since(restoreStart).Milliseconds()
	metrics.ObserveStageLatency("restore", restoreMs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider exhausted")
		return Result{}, err
	}

	resultObject, err := p.blobStore.PutResult(ctx, task.OwnerID, "image/jpeg", restored.Image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store result failed")
		return Result{}, err
	}

	totalMs := time.Since(totalStart).Milliseconds()
	metrics.ObserveStageLatency("total", totalMs)

	return Result{
		Classification: classification,
		EnhancedPrompt: enhanced,
		Provider: model.ProviderMetadata{
			RequestID:     restored.RequestID,
			BilledUnits:   restored.BilledUnits,
			EstimatedCost: restored.EstimatedCost,
			PromptTokens:  p.tokens.Count(enhanced),
		},
		Timings: model.Timings{
			ClassifyMs: classifyMs,
			PromptMs:   promptMs,
			RestoreMs:  restoreMs,
			TotalMs:    totalMs,
		},
		ResultObject: resultObject,
	}, nil
}

// materialize resolves step 3: either the task already carries the source
// bytes inline (small payloads, spec.md §3) or it must be downloaded from
// the owner-scoped object it references.
func (p *Pipeline) materialize(ctx context.Context, task *model.Task) ([]byte, error) {
	return p.blobStore.Download(ctx, task.OwnerID, task.SourceObject)
}

// conservativeClassification is the fallback used when the source image
// cannot even be decoded; every kind gets the classifier's own documented
// floor rather than zero, so the enhancer still attempts a mild correction.
func conservativeClassification() map[string]float64 {
	return map[string]float64{
		classify.KindBlur:        0.1,
		classify.KindNoise:       0.1,
		classify.KindLowLight:    0.1,
		classify.KindCompression: 0,
		classify.KindScratch:     0.1,
		classify.KindFade:        0.1,
		classify.KindColorShift:  0.1,
	}
}
