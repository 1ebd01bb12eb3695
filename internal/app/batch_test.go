package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sms-campaign-engine/internal/adapters/db/memory"
	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGateway returns canned outcomes and records every call.
type scriptedGateway struct {
	mu    sync.Mutex
	calls []string // normalized "to" values, in call order
	send  func(to, body string) (ports.Outcome, error)
}

func (g *scriptedGateway) Send(_ context.Context, to, body string, _ domain.ProviderConfig) (ports.Outcome, error) {
	g.mu.Lock()
	g.calls = append(g.calls, to)
	g.mu.Unlock()
	if g.send != nil {
		return g.send(to, body)
	}
	return ports.Outcome{Success: true, ProviderMessageID: "prov-" + to}, nil
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func resolverFor(gw ports.ProviderGateway) GatewayResolver {
	return func(string) ports.ProviderGateway { return gw }
}

func seedCampaign(t *testing.T, repo *memory.Repository, n int, scheduledAt time.Time) domain.Campaign {
	t.Helper()
	c := domain.NewCampaign("test", "body", domain.ProviderMock, nil, scheduledAt, n)
	msgs := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, domain.NewMessage(c.ID, fmt.Sprintf("555123%04d", i), fmt.Sprintf("msg %d", i), i))
	}
	require.NoError(t, repo.CreateCampaign(context.Background(), c, msgs))
	return c
}

func newTestDriver(repo ports.CampaignRepository, gw ports.ProviderGateway) *BatchStepDriver {
	return NewBatchStepDriver(repo, resolverFor(gw), ports.NopPublisher{}, testLogger(), 5, 0)
}

func TestStepNoWork(t *testing.T) {
	driver := newTestDriver(memory.New(), &scriptedGateway{})

	res, err := driver.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NoWork)
	assert.Zero(t, res.Processed)
}

func TestStepTwelveRecipientsCompleteInFourSteps(t *testing.T) {
	repo := memory.New()
	gw := &scriptedGateway{}
	driver := newTestDriver(repo, gw)
	c := seedCampaign(t, repo, 12, time.Now().Add(-time.Minute))

	ctx := context.Background()

	// ceil(12/5) sending steps: 5, 5, 2.
	for _, want := range []int{5, 5, 2} {
		res, err := driver.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, c.ID, res.CampaignID)
		assert.Equal(t, want, res.Processed)
		assert.False(t, res.Completed)
	}

	// One final step only transitions to completed.
	res, err := driver.Step(ctx)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Zero(t, res.Processed)

	got, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, got.Status)
	assert.Equal(t, 12, got.SentCount)
	assert.Equal(t, 0, got.FailedCount)

	// Nothing is eligible afterwards.
	res, err = driver.Step(ctx)
	require.NoError(t, err)
	assert.True(t, res.NoWork)
}

func TestStepMarksSendingBeforeFirstSend(t *testing.T) {
	repo := memory.New()
	c := seedCampaign(t, repo, 3, time.Now().Add(-time.Minute))

	var statusAtFirstSend domain.CampaignStatus
	gw := &scriptedGateway{}
	gw.send = func(to, body string) (ports.Outcome, error) {
		if statusAtFirstSend == "" {
			got, err := repo.GetCampaign(context.Background(), c.ID)
			require.NoError(t, err)
			statusAtFirstSend = got.Status
		}
		return ports.Outcome{Success: true, ProviderMessageID: "x"}, nil
	}

	_, err := newTestDriver(repo, gw).Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSending, statusAtFirstSend)
}

func TestStepProviderFailureDoesNotAbortBatch(t *testing.T) {
	repo := memory.New()
	c := seedCampaign(t, repo, 4, time.Now().Add(-time.Minute))

	call := 0
	gw := &scriptedGateway{}
	gw.send = func(to, body string) (ports.Outcome, error) {
		call++
		if call == 2 {
			return ports.Outcome{Success: false, Error: "invalid number"}, nil
		}
		if call == 3 {
			// Transport fault: treated the same as a reported failure.
			return ports.Outcome{}, errors.New("network unreachable")
		}
		return ports.Outcome{Success: true, ProviderMessageID: "ok"}, nil
	}

	res, err := newTestDriver(repo, gw).Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)

	got, err := repo.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 2, got.FailedCount)
	assert.LessOrEqual(t, got.SentCount+got.FailedCount, got.TotalMessages)
}

func TestStepRecordsFailureText(t *testing.T) {
	repo := memory.New()
	c := seedCampaign(t, repo, 1, time.Now().Add(-time.Minute))

	gw := &scriptedGateway{send: func(to, body string) (ports.Outcome, error) {
		return ports.Outcome{Success: false, Error: "auth failed"}, nil
	}}

	_, err := newTestDriver(repo, gw).Step(context.Background())
	require.NoError(t, err)

	msgs, err := repo.PendingMessages(context.Background(), c.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	stats, err := repo.MessageStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["failed"])
}

type failingRepo struct {
	ports.CampaignRepository
	failMarkSent bool
}

func (r *failingRepo) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, at time.Time) error {
	if r.failMarkSent {
		return errors.New("disk full")
	}
	return r.CampaignRepository.MarkSent(ctx, id, providerMessageID, at)
}

func TestStepPersistenceFailureAbortsAndLeavesMessageRetryable(t *testing.T) {
	mem := memory.New()
	repo := &failingRepo{CampaignRepository: mem, failMarkSent: true}
	c := seedCampaign(t, mem, 2, time.Now().Add(-time.Minute))
	gw := &scriptedGateway{}
	driver := newTestDriver(repo, gw)

	ctx := context.Background()

	_, err := driver.Step(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, gw.callCount())

	// The message stayed pending, so the next invocation retries it:
	// at-least-once, a duplicate provider send is possible here.
	msgs, err := mem.PendingMessages(ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	repo.failMarkSent = false
	res, err := driver.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 3, gw.callCount())
}

func TestStepTerminalStatusesAreWriteOnce(t *testing.T) {
	repo := memory.New()
	c := seedCampaign(t, repo, 2, time.Now().Add(-time.Minute))
	driver := newTestDriver(repo, &scriptedGateway{})

	ctx := context.Background()
	_, err := driver.Step(ctx)
	require.NoError(t, err)

	first, err := repo.MessageStats(ctx, c.ID)
	require.NoError(t, err)

	// Re-observing on later steps never rewrites a terminal status.
	_, err = driver.Step(ctx)
	require.NoError(t, err)

	again, err := repo.MessageStats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, first["sent"], again["sent"])
	assert.Equal(t, first["failed"], again["failed"])
}

func TestStepPicksEarliestScheduledCampaign(t *testing.T) {
	repo := memory.New()
	_ = seedCampaign(t, repo, 1, time.Now().Add(-time.Minute))
	early := seedCampaign(t, repo, 1, time.Now().Add(-time.Hour))

	res, err := newTestDriver(repo, &scriptedGateway{}).Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, early.ID, res.CampaignID)
}

func TestStepSkipsFutureAndPausedCampaigns(t *testing.T) {
	repo := memory.New()
	future := seedCampaign(t, repo, 1, time.Now().Add(time.Hour))
	paused := seedCampaign(t, repo, 1, time.Now().Add(-time.Hour))
	require.NoError(t, repo.UpdateCampaignStatus(context.Background(), paused.ID, domain.CampaignPaused))

	res, err := newTestDriver(repo, &scriptedGateway{}).Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NoWork, "future %s and paused %s must not be selected", future.ID, paused.ID)
}

func TestStepNormalizesStoredPhoneNumbers(t *testing.T) {
	repo := memory.New()
	c := domain.NewCampaign("test", "body", domain.ProviderMock, nil, time.Now().Add(-time.Minute), 1)
	msg := domain.NewMessage(c.ID, "(555) 123-4567", "hello", 0)
	require.NoError(t, repo.CreateCampaign(context.Background(), c, []domain.Message{msg}))

	gw := &scriptedGateway{}
	_, err := newTestDriver(repo, gw).Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, gw.callCount())
	assert.Equal(t, "+15551234567", gw.calls[0])
}

func TestStepStoresPlaceholderForMissingProviderID(t *testing.T) {
	repo := memory.New()
	c := seedCampaign(t, repo, 1, time.Now().Add(-time.Minute))

	gw := &scriptedGateway{send: func(to, body string) (ports.Outcome, error) {
		return ports.Outcome{Success: true}, nil // success, no identifier
	}}
	_, err := newTestDriver(repo, gw).Step(context.Background())
	require.NoError(t, err)

	msgs, err := repo.PendingMessages(context.Background(), c.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	stats, err := repo.MessageStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["sent"])
}
