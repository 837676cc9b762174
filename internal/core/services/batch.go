package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
	"github.com/custodia-labs/docwatch/internal/logger"
)

// Ensure BatchIngester implements the interface.
var _ driving.BatchIngestor = (*BatchIngester)(nil)

// BatchIngester runs many single-source ingestions on a bounded pool.
type BatchIngester struct {
	ingestor driving.Ingestor
	workers  int
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewBatchIngester creates a batch ingester. ratePerSecond caps how fast
// ingestions start; zero disables the limiter.
func NewBatchIngester(ingestor driving.Ingestor, workers int, ratePerSecond float64) *BatchIngester {
	if workers < 1 {
		workers = domain.DefaultBatchWorkers
	}
	b := &BatchIngester{
		ingestor: ingestor,
		workers:  workers,
		now:      time.Now,
	}
	if ratePerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return b
}

// IngestAll ingests every document and reports one outcome per input,
// in input order. A failing source never stops its siblings. Once ctx
// is cancelled no further sources start and the rest report ctx's error.
func (b *BatchIngester) IngestAll(ctx context.Context, docs []domain.RawDocument) *domain.BatchReport {
	report := &domain.BatchReport{
		Outcomes:  make([]domain.SourceOutcome, len(docs)),
		StartedAt: b.now(),
	}
	for i := range docs {
		report.Outcomes[i].SourceID = docs[i].SourceID
	}

	g := new(errgroup.Group)
	g.SetLimit(b.workers)
	for i := range docs {
		if err := b.wait(ctx); err != nil {
			for j := i; j < len(docs); j++ {
				report.Outcomes[j].Err = err
				report.Outcomes[j].Stage = domain.StageRead
			}
			break
		}
		g.Go(func() error {
			report.Outcomes[i] = b.ingestOne(ctx, &docs[i])
			return nil
		})
	}
	_ = g.Wait()
	report.FinishedAt = b.now()

	ingested, duplicates, failed, changes := report.Counts()
	logger.Info("batch: %d source(s): %d ingested, %d duplicate, %d failed, %d change(s)",
		len(docs), ingested, duplicates, failed, changes)
	return report
}

// wait blocks until the limiter admits another source or ctx ends.
func (b *BatchIngester) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

// ingestOne runs one source, converting a panic into a failed outcome.
func (b *BatchIngester) ingestOne(ctx context.Context, doc *domain.RawDocument) (out domain.SourceOutcome) {
	start := b.now()
	out.SourceID = doc.SourceID
	defer func() {
		if r := recover(); r != nil {
			out.Outcome = nil
			out.Err = fmt.Errorf("ingest %s: panic: %v", doc.SourceID, r)
			out.Stage = domain.StageRead
			logger.Failure(string(out.Stage), doc.SourceID, out.Err)
		}
		out.Duration = b.now().Sub(start)
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err
		out.Stage = domain.StageRead
		return out
	}

	outcome, err := b.ingestor.Ingest(ctx, *doc)
	if err != nil {
		out.Err = err
		out.Stage = domain.StageFor(err)
		return out
	}
	out.Outcome = outcome
	return out
}
