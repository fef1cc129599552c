// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-composer/internal/catalog"
	"sms-composer/internal/common/config"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/composer"
	"sms-composer/internal/generation"
	"sms-composer/internal/guardrail"
	"sms-composer/internal/orchestrator"
	"sms-composer/internal/retriever"
	"sms-composer/internal/segments"
	"sms-composer/internal/server"
	"sms-composer/pkg/registry"
)

const offersCSV = `id;cta;famille;libelle;volume;minutes;sms;validite_jours;prix_dh;zone;link;version_catalogue
pass-data-1go;*3;USAGE_Internet;Pass Data 1 Go;1024;;;7;10;;https://iam.ma/pass-data;2026-08
pass-voix-120;*1;USAGE_Voix;Pass Voix 120 min;;120;;7;20;;https://iam.ma/pass-voix;2026-08
`

const handsetsCSV = `id;marque;modele;capacite;prix_dh;link;version_catalogue
galaxy-a15;SAMSUNG;Galaxy A15;128 Go;1790;https://iam.ma/smartphones/galaxy-a15;2026-08
`

const segmentsCSV = `famille;persona;data_tier;voice_tier;sms_tier;roaming;hset_brand;hset_model;cta
USAGE_Internet;PROFIL_Internet;4;1;0;0;;;*3
USAGE_Voix;PROFIL_Voix;0;4;1;0;;;*1
OPPORTUNITE_Achat_Equipement;PROFIL_Equipement;2;2;1;0;SAMSUNG;Galaxy A15;*55
`

type stack struct {
	router *gin.Engine
}

type stackOptions struct {
	registry *registry.TemplateRegistry
	live     config.LiveBackendConfig
}

func newStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "offres.csv"), []byte(offersCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smartphones.csv"), []byte(handsetsCSV), 0o644))
	cat, err := catalog.NewFromCSV(dir, log)
	require.NoError(t, err)

	segPath := filepath.Join(dir, "segments.csv")
	require.NoError(t, os.WriteFile(segPath, []byte(segmentsCSV), 0o644))
	seg, err := segments.NewFromCSV(segPath, log)
	require.NoError(t, err)

	ret := retriever.Disabled()
	comp := composer.New(seg, cat, ret, config.RetrieverConfig{TopK: 5}, log)
	mock := generation.NewMockBackend(opts.registry, log)

	var live *generation.LiveBackend
	if opts.live.Configured() {
		live = generation.NewLiveBackend(opts.live, log)
	}

	validator := guardrail.New(config.GuardrailConfig{
		MaxChars:     480,
		CTAAllowList: []string{"Composez", "Cliquez", "iam.ma", "bit.ly"},
	}, log)
	orch := orchestrator.New(comp, mock, live, validator, config.GenerationConfig{MaxChars: 600, Live: opts.live}, nil, log)

	router := gin.New()
	server.SetupRoutes(router, server.NewHandler(orch, ret, cat, log))
	return &stack{router: router}
}

func (s *stack) post(t *testing.T, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/compose/message", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func composeBody(key, mode string) map[string]interface{} {
	return map[string]interface{}{
		"segmentation_key": key,
		"mode":             mode,
	}
}

func newLiveServer(t *testing.T, inferenceCalls *int32, completion func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/v1/models":
			fmt.Fprint(w, `{"data":[{"id":"iam-sms-writer"}]}`)
		case "/v1/chat/completions":
			atomic.AddInt32(inferenceCalls, 1)
			completion(w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestFullPipelineMock(t *testing.T) {
	s := newStack(t, stackOptions{})

	t.Log("🚀 Mock compose over HTTP...")
	w, resp := s.post(t, composeBody("USAGE_Internet:PROFIL_Internet", "mock"))
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	assert.NotEmpty(t, resp["request_id"])
	assert.Equal(t, "mock", resp["backend"])

	message, _ := resp["message"].(string)
	require.NotEmpty(t, message)
	assert.NotContains(t, message, "{", "no unresolved placeholders")
	assert.LessOrEqual(t, len([]rune(message)), 480)

	ctx, ok := resp["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "USAGE_Internet", ctx["famille"])
	assert.Equal(t, "*3", ctx["cta"])
	assert.NotEmpty(t, ctx["deadline"])

	// Same request twice yields the same message.
	_, again := s.post(t, composeBody("USAGE_Internet:PROFIL_Internet", "mock"))
	assert.Equal(t, message, again["message"])
	t.Log("✅ Mock compose reproducible")
}

func TestFullPipelineEquipment(t *testing.T) {
	s := newStack(t, stackOptions{})

	w, resp := s.post(t, composeBody("OPPORTUNITE_Achat_Equipement:PROFIL_Equipement", "mock"))
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	message, _ := resp["message"].(string)
	assert.Contains(t, message, "Galaxy A15")

	ctx, ok := resp["context"].(map[string]interface{})
	require.True(t, ok)
	handset, ok := ctx["handset_context"].(map[string]interface{})
	require.True(t, ok, "equipment campaigns carry a handset context")
	assert.Equal(t, "SAMSUNG", handset["marque"])
}

func TestFullPipelineUnknownSegment(t *testing.T) {
	s := newStack(t, stackOptions{})

	w, resp := s.post(t, composeBody("USAGE_Internet:PROFIL_Inconnu", "mock"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SEGMENT_NOT_FOUND", resp["code"])
}

func TestFullPipelineGuardrailRejection(t *testing.T) {
	// Every rotation variant fabricates a price, so validation fails on both
	// attempts and the rejection surfaces with the violated rules.
	bad := &registry.TemplateRegistry{
		Version: "e2e-bad",
		Templates: []registry.Template{{
			ID:       "bad-offer",
			Family:   registry.AnyFamily,
			Persona:  registry.AnyPersona,
			Selector: registry.DefaultSelector,
			Variants: []string{
				"{offer_name} a 999 DH seulement. Composez {cta}.",
				"Promo exceptionnelle : {offer_name} pour 888 DH. Composez {cta}.",
			},
		}},
	}
	s := newStack(t, stackOptions{registry: bad})

	w, resp := s.post(t, composeBody("USAGE_Internet:PROFIL_Internet", "mock"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", resp["code"])
	assert.Contains(t, fmt.Sprint(resp["details"]), "numeric_fidelity")
}

func TestFullPipelineLive(t *testing.T) {
	var calls int32
	srv := newLiveServer(t, &calls, func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Pass Data 1 Go : 1 Go pour 10 DH, valable 7 jours. Composez *3."}}]}`)
	})
	defer srv.Close()

	s := newStack(t, stackOptions{live: config.LiveBackendConfig{
		BaseURL:     srv.URL,
		Model:       "iam-sms-writer",
		Temperature: 0.8,
		TopP:        0.9,
		MaxTokens:   140,
		Timeout:     2000,
	}})

	t.Log("🚀 Live compose over HTTP...")
	w, resp := s.post(t, composeBody("USAGE_Internet:PROFIL_Internet", "live"))
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	assert.Equal(t, "live", resp["backend"])
	assert.Equal(t, "iam-sms-writer", resp["model"])
	assert.Contains(t, resp["message"], "Composez *3")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	t.Log("✅ Live compose successful")
}

func TestFullPipelineLiveBackendFailure(t *testing.T) {
	var calls int32
	srv := newLiveServer(t, &calls, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	s := newStack(t, stackOptions{live: config.LiveBackendConfig{
		BaseURL: srv.URL,
		Model:   "iam-sms-writer",
		Timeout: 2000,
	}})

	w, resp := s.post(t, composeBody("USAGE_Internet:PROFIL_Internet", "live"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "BACKEND_UNAVAILABLE", resp["code"])
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "live inference is never retried")
}

func TestHealthReportsCatalog(t *testing.T) {
	s := newStack(t, stackOptions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Retriever)
	assert.Equal(t, "2026-08", resp.CatalogVersion)
}
