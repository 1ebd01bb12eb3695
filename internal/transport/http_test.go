package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sms-campaign-engine/internal/adapters/db/memory"
	"sms-campaign-engine/internal/app"
	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okGateway struct{}

func (okGateway) Send(context.Context, string, string, domain.ProviderConfig) (ports.Outcome, error) {
	return ports.Outcome{Success: true, ProviderMessageID: "prov-1"}, nil
}

type fixture struct {
	app  *fiber.App
	repo *memory.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()
	svc := app.NewCampaignService(repo, ports.NopPublisher{}, log)
	driver := app.NewBatchStepDriver(repo,
		func(string) ports.ProviderGateway { return okGateway{} },
		ports.NopPublisher{}, log, 5, 0)

	f := fiber.New()
	NewHandler(svc, driver, log).Register(f.Group("/api"))
	return fixture{app: f, repo: repo}
}

func (f fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitBody(n int) map[string]any {
	msgs := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, map[string]string{"to": "5551234567", "content": "hi"})
	}
	return map[string]any{
		"name":         "launch",
		"template":     "hi",
		"providerType": "mock",
		"messages":     msgs,
	}
}

func TestSubmitCampaignCreated(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(3))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(3), body["queued"])

	id, err := uuid.Parse(body["campaign_id"].(string))
	require.NoError(t, err)
	c, err := f.repo.GetCampaign(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignPending, c.Status)
}

func TestSubmitCampaignEmptyMessagesRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(0))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no messages provided", decode(t, resp)["error"])
}

func TestGetCampaignWithStats(t *testing.T) {
	f := newFixture(t)

	created := decode(t, f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(2)))
	id := created["campaign_id"].(string)

	resp := f.do(t, fiber.MethodGet, "/api/campaigns/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, float64(2), stats["pending"])
}

func TestGetCampaignNotFoundAndBadID(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, fiber.MethodGet, "/api/campaigns/"+uuid.NewString(), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, fiber.MethodGet, "/api/campaigns/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListCampaigns(t *testing.T) {
	f := newFixture(t)
	f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(1)).Body.Close()
	f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(1)).Body.Close()

	resp := f.do(t, fiber.MethodGet, "/api/campaigns", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	campaigns := decode(t, resp)["campaigns"].([]any)
	assert.Len(t, campaigns, 2)
}

func TestCancelResumeDelete(t *testing.T) {
	f := newFixture(t)

	created := decode(t, f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(1)))
	id := created["campaign_id"].(string)

	resp := f.do(t, fiber.MethodPost, "/api/campaigns/"+id+"/cancel", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Cancelling twice conflicts: paused cannot be paused again.
	resp = f.do(t, fiber.MethodPost, "/api/campaigns/"+id+"/cancel", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, fiber.MethodPost, "/api/campaigns/"+id+"/resume", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, fiber.MethodDelete, "/api/campaigns/"+id, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, fiber.MethodDelete, "/api/campaigns/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestTriggerStepLifecycle(t *testing.T) {
	f := newFixture(t)

	// No campaigns yet.
	resp := f.do(t, fiber.MethodPost, "/api/worker/step", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "no active campaigns to process", decode(t, resp)["message"])

	f.do(t, fiber.MethodPost, "/api/campaigns", submitBody(2)).Body.Close()

	resp = f.do(t, fiber.MethodPost, "/api/worker/step", nil)
	body := decode(t, resp)
	assert.Equal(t, "processed 2 messages", body["message"])
	assert.Equal(t, float64(2), body["processed"])

	resp = f.do(t, fiber.MethodPost, "/api/worker/step", nil)
	assert.Equal(t, "campaign completed", decode(t, resp)["message"])
}

func TestSubmitCampaignScheduledInFutureNotPicked(t *testing.T) {
	f := newFixture(t)

	body := submitBody(1)
	body["scheduledAt"] = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	f.do(t, fiber.MethodPost, "/api/campaigns", body).Body.Close()

	resp := f.do(t, fiber.MethodPost, "/api/worker/step", nil)
	assert.Equal(t, "no active campaigns to process", decode(t, resp)["message"])
}
