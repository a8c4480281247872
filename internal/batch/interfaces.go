package batch

import "context"

// Session is the caller-owned browser or page handle. The processor never
// inspects it; it is forwarded as-is to every Issuer call and may be nil.
type Session any

// Issuer performs the two steps needed to issue one certificate.
type Issuer interface {
	// NavigateToCertificatePage positions the session at the start of the
	// issuance form.
	NavigateToCertificatePage(ctx context.Context, session Session) error

	// EmitCertificate runs the issuance flow for a single identifier. The
	// boolean is the authoritative outcome; a non-nil error means the flow
	// could not complete at all.
	EmitCertificate(ctx context.Context, session Session, id Identifier, credential Credential, index, total int, registry Registry) (bool, error)
}

// Observer is notified after each identifier has been settled.
type Observer interface {
	ItemDone(outcome ItemOutcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(outcome ItemOutcome)

// ItemDone calls f(outcome).
func (f ObserverFunc) ItemDone(outcome ItemOutcome) { f(outcome) }

// IssuerFuncs adapts a pair of functions to the Issuer interface. A nil
// Navigate is treated as a no-op.
type IssuerFuncs struct {
	Navigate func(ctx context.Context, session Session) error
	Emit     func(ctx context.Context, session Session, id Identifier, credential Credential, index, total int, registry Registry) (bool, error)
}

// NavigateToCertificatePage implements Issuer.
func (f IssuerFuncs) NavigateToCertificatePage(ctx context.Context, session Session) error {
	if f.Navigate == nil {
		return nil
	}
	return f.Navigate(ctx, session)
}

// EmitCertificate implements Issuer.
func (f IssuerFuncs) EmitCertificate(ctx context.Context, session Session, id Identifier, credential Credential, index, total int, registry Registry) (bool, error) {
	if f.Emit == nil {
		return false, ErrNoEmitter
	}
	return f.Emit(ctx, session, id, credential, index, total, registry)
}

// Observers fans a notification out to several observers in order.
type Observers []Observer

// ItemDone implements Observer.
func (o Observers) ItemDone(outcome ItemOutcome) {
	for _, observer := range o {
		if observer != nil {
			observer.ItemDone(outcome)
		}
	}
}
