package registry

import (
	"strings"
	"unicode"

	"github.com/tracertea/certidao/internal/batch"
)

// Name returns the company name for id, or the identifier itself.
func Name(reg batch.Registry, id batch.Identifier) string {
	if company, ok := reg[id]; ok && strings.TrimSpace(company.Name) != "" {
		return strings.TrimSpace(company.Name)
	}
	return string(id)
}

// FileName returns a filesystem-safe base name for the artifacts of id,
// e.g. "ACME_LTDA_12345678000190".
func FileName(reg batch.Registry, id batch.Identifier) string {
	digits := Digits(id)
	if digits == "" {
		digits = sanitize(string(id))
	}

	company, ok := reg[id]
	if !ok || strings.TrimSpace(company.Name) == "" {
		return digits
	}
	name := sanitize(company.Name)
	if name == "" {
		return digits
	}
	return name + "_" + digits
}

// Digits strips punctuation from a formatted CNPJ.
func Digits(id batch.Identifier) string {
	var b strings.Builder
	for _, r := range string(id) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
