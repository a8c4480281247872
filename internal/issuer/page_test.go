package issuer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteKey(t *testing.T) {
	assert.Equal(t, "site-abc", SiteKey(formPage))
	assert.Equal(t, "", SiteKey(`<html><body><div data-sitekey="  "></div></body></html>`))
	assert.Equal(t, "", SiteKey(""))
}

func TestVisibleText(t *testing.T) {
	doc := `<html><head><title>t</title></head><body>
	<script>var x = "hidden";</script><style>.a{}</style>
	<p>Certidão   emitida</p><span>com sucesso</span></body></html>`
	assert.Equal(t, "Certidão emitida com sucesso", VisibleText(doc))
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name       string
		doc        string
		want       Verdict
		wantMarker string
	}{
		{
			name:       "issued",
			doc:        `<p>CERTIDÃO NEGATIVA DE DÉBITOS RELATIVOS AOS TRIBUTOS FEDERAIS</p>`,
			want:       VerdictIssued,
			wantMarker: "certidão negativa de débitos",
		},
		{
			name:       "refusal wins over success text",
			doc:        `<p>Certidão emitida?</p><p>Não foi possível concluir a ação</p>`,
			want:       VerdictRefused,
			wantMarker: "não foi possível",
		},
		{
			name:       "marker only inside a script is ignored",
			doc:        `<script>"certidão emitida"</script><p>aguarde</p>`,
			want:       VerdictUnknown,
			wantMarker: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, marker := Classify(tt.doc, cfg.SuccessMarkers, cfg.FailureMarkers)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMarker, marker)
			assert.NotEmpty(t, got.String())
		})
	}
}
