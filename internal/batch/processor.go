package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Processor runs batches of identifiers through an Issuer.
type Processor struct {
	issuer   Issuer
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for per-item progress and faults.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers an observer notified after each identifier.
func WithObserver(observer Observer) Option {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor creates a processor that delegates each identifier to issuer.
func NewProcessor(issuer Issuer, opts ...Option) *Processor {
	p := &Processor{
		issuer: issuer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process issues a certificate for every identifier, sequentially and in
// order. Item failures and faults never abort the batch. The returned error
// is non-nil only when ctx is cancelled; the Result then covers the
// identifiers settled before cancellation. An item whose issuer returned the
// cancellation error is not counted.
func (p *Processor) Process(ctx context.Context, session Session, identifiers []Identifier, credential Credential, registry Registry) (Result, error) {
	result := Result{Items: make([]ItemOutcome, 0, len(identifiers))}
	total := len(identifiers)
	if total == 0 {
		return result, nil
	}

	start := p.now()
	p.logger.Info("Starting batch.", "total", total)

	for i, id := range identifiers {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Batch cancelled.", "processed", result.Processed(), "total", total, "error", err)
			return result, err
		}

		outcome := p.processItem(ctx, session, id, credential, i+1, total, registry)
		if interrupted(ctx, outcome.Err) {
			p.logger.Warn("Batch cancelled during item.", "cnpj", string(id), "processed", result.Processed(), "total", total)
			return result, ctx.Err()
		}
		result.record(outcome)

		if p.observer != nil {
			p.observer.ItemDone(outcome)
		}
	}

	p.logger.Info("Batch completed.",
		"success", result.Success,
		"failure", result.Failure,
		"faults", result.Faults(),
		"duration", p.now().Sub(start).String(),
	)
	return result, nil
}

// interrupted reports whether err comes from ctx being cancelled. Such an
// item did not complete and is left out of the result.
func interrupted(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return ctxErr != nil && err != nil && errors.Is(err, ctxErr)
}

// processItem settles a single identifier. It always returns an outcome.
func (p *Processor) processItem(ctx context.Context, session Session, id Identifier, credential Credential, index, total int, registry Registry) ItemOutcome {
	start := p.now()
	outcome := ItemOutcome{Identifier: id, Index: index, Total: total}
	logger := p.logger.With("cnpj", string(id), "index", index, "total", total)

	logger.Debug("Processing identifier.")
	ok, err := p.invoke(ctx, session, id, credential, index, total, registry)
	outcome.Duration = p.now().Sub(start)

	switch {
	case err != nil:
		outcome.Status = StatusFault
		outcome.Err = err
		logger.Error("Certificate issuance faulted.", "error", err, "duration", outcome.Duration.String())
	case ok:
		outcome.Status = StatusSuccess
		logger.Info("Certificate issued.", "duration", outcome.Duration.String())
	default:
		outcome.Status = StatusFailure
		logger.Warn("Certificate not issued.", "duration", outcome.Duration.String())
	}
	return outcome
}

// invoke runs both issuer steps, converting errors and panics into an
// *ItemError.
func (p *Processor) invoke(ctx context.Context, session Session, id Identifier, credential Credential, index, total int, registry Registry) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &ItemError{Identifier: id, Index: index, Kind: FaultPanic, Cause: panicError(r)}
		}
	}()

	if err := p.issuer.NavigateToCertificatePage(ctx, session); err != nil {
		return false, &ItemError{Identifier: id, Index: index, Kind: FaultNavigate, Cause: err}
	}

	ok, err = p.issuer.EmitCertificate(ctx, session, id, credential, index, total, registry)
	if err != nil {
		return false, &ItemError{Identifier: id, Index: index, Kind: FaultEmit, Cause: err}
	}
	return ok, nil
}

// ProcessBatch runs a batch with default options and returns the success and
// failure counts. Cancellation is reflected only in the counts.
func ProcessBatch(ctx context.Context, issuer Issuer, session Session, identifiers []Identifier, credential Credential, registry Registry) (success, failure int) {
	result, _ := NewProcessor(issuer).Process(ctx, session, identifiers, credential, registry)
	return result.Success, result.Failure
}
