package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/alerting/internal/config"
	"github.com/ehr/alerting/internal/platform/auth"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "development",
		DatabaseDriver:  "sqlite",
		DatabaseURL:     ":memory:",
		CronSecret:      "s3cret",
		Timezone:        "UTC",
		NotifyChannels:  []string{"whatsapp"},
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		GatewayTimeout:  time.Second,
		GatewayRPS:      10,
		SendLedger:      "sql",
		PollConcurrency: 2,
		PollTimeout:     time.Minute,
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	a, err := buildApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a.routes()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newTestServer(t)
	for _, path := range []string{"/health", "/health/db"} {
		if rec := do(t, h, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestAlertRoutes(t *testing.T) {
	h := newTestServer(t)
	user := map[string]string{auth.DevUserHeader: "u1"}

	rec := do(t, h, http.MethodPost, "/api/v1/alerts", `{"message":"Comprar termómetro","priority":"low"}`, user)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/alerts", "", user)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("expected one alert, got %d", page.Total)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/alerts", "", map[string]string{auth.DevUserHeader: "u2"})
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("alerts leaked across owners: %s", rec.Body.String())
	}
}

func TestPreferencesSendWelcome(t *testing.T) {
	h := newTestServer(t)
	user := map[string]string{auth.DevUserHeader: "u1"}

	body := `{"displayName":"Ana","phone":"+5215512345678","whatsappEnabled":true}`
	rec := do(t, h, http.MethodPut, "/api/v1/me/notification-preferences", body, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"welcome":"sent"`) {
		t.Errorf("expected welcome to be sent, got %s", rec.Body.String())
	}
}

func TestInternalRoutesRequireSecret(t *testing.T) {
	h := newTestServer(t)

	if rec := do(t, h, http.MethodPost, "/internal/scheduled-checks", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without secret = %d", rec.Code)
	}

	secret := map[string]string{auth.CronSecretHeader: "s3cret"}
	rec := do(t, h, http.MethodPost, "/internal/scheduled-checks", "", secret)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"runId"`) {
		t.Errorf("with secret = %d %s", rec.Code, rec.Body.String())
	}

	due := time.Now().AddDate(0, 0, 20).UTC().Format(time.RFC3339)
	ev := `{"type":"documentExpiring","ownerUserId":"u1","subjectId":"doc-1","label":"Pasaporte","dueAt":"` + due + `"}`
	rec = do(t, h, http.MethodPost, "/internal/events", ev, secret)
	if rec.Code != http.StatusCreated {
		t.Errorf("ingest = %d %s", rec.Code, rec.Body.String())
	}
}

func TestBuildGateway_UnknownChannel(t *testing.T) {
	cfg := testConfig()
	cfg.NotifyChannels = []string{"pigeon"}
	if _, err := buildGateway(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected an error for an unknown channel")
	}
}
