package usecase

import (
	"context"
	"time"

	"github.com/allisson/panvault/internal/metrics"
)

// panUseCaseWithMetrics decorates PanUseCase with metrics instrumentation.
type panUseCaseWithMetrics struct {
	next    PanUseCase
	metrics metrics.BusinessMetrics
}

// NewPanUseCaseWithMetrics wraps a PanUseCase with metrics recording.
func NewPanUseCaseWithMetrics(useCase PanUseCase, m metrics.BusinessMetrics) PanUseCase {
	return &panUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Ingest records metrics for PAN ingestion operations.
func (p *panUseCaseWithMetrics) Ingest(ctx context.Context, hpan, pan string, seenAt time.Time) error {
	start := time.Now()
	err := p.next.Ingest(ctx, hpan, pan, seenAt)

	status := "success"
	if err != nil {
		status = "error"
	}

	p.metrics.RecordOperation(ctx, "pan", "pan_ingest", status)
	p.metrics.RecordDuration(ctx, "pan", "pan_ingest", time.Since(start), status)

	return err
}

// DecryptByHpan records metrics for PAN decrypt operations.
func (p *panUseCaseWithMetrics) DecryptByHpan(
	ctx context.Context,
	hpan, requestedBy, reason string,
) (string, error) {
	start := time.Now()
	pan, err := p.next.DecryptByHpan(ctx, hpan, requestedBy, reason)

	status := "success"
	if err != nil {
		status = "error"
	}

	p.metrics.RecordOperation(ctx, "pan", "pan_decrypt", status)
	p.metrics.RecordDuration(ctx, "pan", "pan_decrypt", time.Since(start), status)

	return pan, err
}
