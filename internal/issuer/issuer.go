package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/browser"
	"github.com/tracertea/certidao/internal/captcha"
	"github.com/tracertea/certidao/internal/registry"
)

// ErrNotBrowserSession is returned when the session handed to the issuer
// cannot drive a browser.
var ErrNotBrowserSession = errors.New("session is not a browser session")

// Config describes the certificate form.
type Config struct {
	URL               string
	CNPJInputSelector string
	SubmitSelector    string
	ResultSelector    string
	CaptchaFieldNames []string
	SuccessMarkers    []string
	FailureMarkers    []string
	ArtifactDir       string
}

// DefaultConfig returns the settings for the federal revenue service form.
func DefaultConfig() Config {
	return Config{
		URL:               "https://solucoes.receita.fazenda.gov.br/Servicos/certidaointernet/PJ/Emitir",
		CNPJInputSelector: "#NI",
		SubmitSelector:    "#validar",
		ResultSelector:    "#PainelConteudo",
		CaptchaFieldNames: []string{"h-captcha-response", "g-recaptcha-response"},
		SuccessMarkers: []string{
			"certidão emitida",
			"certidão negativa de débitos",
			"certidão positiva com efeitos de negativa",
		},
		FailureMarkers: []string{
			"não foi possível",
			"insuficientes para a emissão",
			"cnpj inválido",
			"captcha inválido",
		},
		ArtifactDir: "certidoes",
	}
}

// Issuer issues certificates by driving a browser.Session through the form.
type Issuer struct {
	cfg    Config
	solver captcha.Solver
	logger *slog.Logger
}

// New creates a browser-driven issuer.
func New(cfg Config, solver captcha.Solver, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{cfg: cfg, solver: solver, logger: logger}
}

func asBrowser(session batch.Session) (browser.Session, error) {
	s, ok := session.(browser.Session)
	if !ok || isNilPointer(s) {
		return nil, fmt.Errorf("%w: got %T", ErrNotBrowserSession, session)
	}
	return s, nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// NavigateToCertificatePage opens the form and waits for the CNPJ field.
func (is *Issuer) NavigateToCertificatePage(ctx context.Context, session batch.Session) error {
	s, err := asBrowser(session)
	if err != nil {
		return err
	}
	if err := s.Navigate(ctx, is.cfg.URL); err != nil {
		return err
	}
	return s.WaitVisible(ctx, is.cfg.CNPJInputSelector)
}

// EmitCertificate fills the form for id, solves the captcha with the
// credential, submits and classifies the answer. An issued certificate is
// saved as PDF under the artifact directory.
func (is *Issuer) EmitCertificate(ctx context.Context, session batch.Session, id batch.Identifier, credential batch.Credential, index, total int, reg batch.Registry) (bool, error) {
	s, err := asBrowser(session)
	if err != nil {
		return false, err
	}
	logger := is.logger.With("cnpj", string(id), "index", index, "total", total, "company", registry.Name(reg, id))
	logger.Info("Emitting certificate.")

	if err := s.SetValue(ctx, is.cfg.CNPJInputSelector, registry.Digits(id)); err != nil {
		return false, err
	}

	if err := is.solveCaptcha(ctx, s, credential, logger); err != nil {
		return false, err
	}

	if err := s.Click(ctx, is.cfg.SubmitSelector); err != nil {
		return false, err
	}
	if err := s.WaitVisible(ctx, is.cfg.ResultSelector); err != nil {
		return false, err
	}

	document, err := s.OuterHTML(ctx)
	if err != nil {
		return false, err
	}

	verdict, marker := Classify(document, is.cfg.SuccessMarkers, is.cfg.FailureMarkers)
	switch verdict {
	case VerdictRefused:
		logger.Warn("Certificate refused.", "reason", marker)
		return false, nil
	case VerdictUnknown:
		logger.Warn("Could not recognize the result page.")
		return false, nil
	}

	path, err := is.saveCertificate(ctx, s, id, reg)
	if err != nil {
		return false, err
	}
	logger.Info("Certificate saved.", "path", path)
	return true, nil
}

// solveCaptcha fills every captcha response field when the page carries a
// captcha widget.
func (is *Issuer) solveCaptcha(ctx context.Context, s browser.Session, credential batch.Credential, logger *slog.Logger) error {
	document, err := s.OuterHTML(ctx)
	if err != nil {
		return err
	}
	siteKey := SiteKey(document)
	if siteKey == "" {
		logger.Debug("No captcha on page.")
		return nil
	}
	if is.solver == nil {
		return errors.New("page requires a captcha but no solver is configured")
	}

	token, err := is.solver.Solve(ctx, string(credential), siteKey, is.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to solve captcha: %w", err)
	}

	script, err := injectScript(is.cfg.CaptchaFieldNames, token)
	if err != nil {
		return err
	}
	var injected bool
	if err := s.Evaluate(ctx, script, &injected); err != nil {
		return err
	}
	if !injected {
		return errors.New("captcha response field not found on page")
	}
	return nil
}

func injectScript(fieldNames []string, token string) (string, error) {
	names, err := jsoniter.MarshalToString(fieldNames)
	if err != nil {
		return "", fmt.Errorf("failed to encode field names: %w", err)
	}
	value, err := jsoniter.MarshalToString(token)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	return fmt.Sprintf(`(() => {
	let found = false;
	for (const name of %s) {
		for (const el of document.querySelectorAll('[name="' + name + '"]')) {
			el.value = %s;
			found = true;
		}
	}
	return found;
})()`, names, value), nil
}

func (is *Issuer) saveCertificate(ctx context.Context, s browser.Session, id batch.Identifier, reg batch.Registry) (string, error) {
	pdf, err := s.PrintPDF(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(is.cfg.ArtifactDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", is.cfg.ArtifactDir, err)
	}
	path := filepath.Join(is.cfg.ArtifactDir, registry.FileName(reg, id)+".pdf")
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		return "", fmt.Errorf("failed to write certificate %s: %w", path, err)
	}
	return path, nil
}

var _ batch.Issuer = (*Issuer)(nil)
