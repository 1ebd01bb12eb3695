// foreground-sender drives a campaign recipient-by-recipient from a CSV
// file, printing live progress. It is the long-lived counterpart to
// batch-runner: one process owns the whole run, paced with randomized
// delays, cancellable with Ctrl-C. With -test-to it sends a single test
// message rendered against the first CSV row instead of running the
// campaign.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cfg "sms-campaign-engine/config"
	"sms-campaign-engine/internal/adapters/provider"
	"sms-campaign-engine/internal/app"
	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/phone"
	"sms-campaign-engine/internal/ports"
	"sms-campaign-engine/internal/template"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var (
		csvPath      = flag.String("csv", "", "path to the recipient CSV (first row is the header)")
		templateText = flag.String("template", "", "message template with {{field}} placeholders and {a|b} variants")
		templateFile = flag.String("template-file", "", "read the template from a file instead")
		providerType = flag.String("provider", domain.ProviderMock, "provider type: mock, twilio or textbee")
		scheduleAt   = flag.String("schedule-at", "", "optional RFC3339 start instant, at most 7 days ahead")
		testTo       = flag.String("test-to", "", "send a single test message to this number and exit")
		resumeSent   = flag.Int("resume-sent", 0, "sent counter from a previous run")
		resumeFailed = flag.Int("resume-failed", 0, "failed counter from a previous run")
	)
	flag.Parse()

	if err := run(log, *csvPath, *templateText, *templateFile, *providerType, *scheduleAt, *testTo, *resumeSent, *resumeFailed); err != nil {
		log.Error("foreground-sender failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, csvPath, templateText, templateFile, providerType, scheduleAt, testTo string, resumeSent, resumeFailed int) error {
	conf, err := cfg.FromEnv()
	if err != nil {
		return err
	}

	if templateFile != "" {
		data, err := os.ReadFile(templateFile)
		if err != nil {
			return fmt.Errorf("read template file: %w", err)
		}
		templateText = string(data)
	}
	if strings.TrimSpace(templateText) == "" {
		return fmt.Errorf("a message template is required")
	}

	registry := provider.NewRegistry(provider.Options{
		TwilioBaseURL:   conf.TwilioBaseURL,
		TextBeeBaseURL:  conf.TextBeeBaseURL,
		MockFailureRate: conf.MockFailureRate,
	})
	gateway := registry.ForType(providerType)
	renderer := template.New()
	creds := credentials(conf, providerType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rows []app.RecipientRow
	if csvPath != "" {
		rows, err = loadRows(csvPath)
		if err != nil {
			return err
		}
	}

	if testTo != "" {
		return sendTest(ctx, log, gateway, renderer, templateText, creds, rows, testTo)
	}

	if len(rows) == 0 {
		return fmt.Errorf("a recipient CSV is required")
	}

	driver := app.NewContinuousDriver(gateway, renderer, log, conf.MinSendDelay, conf.MaxSendDelay)
	job := app.Job{
		Rows:         rows,
		Template:     templateText,
		ProviderType: providerType,
		Config:       creds,
		Resume:       app.Progress{Sent: resumeSent, Failed: resumeFailed},
	}

	var events <-chan app.ProgressEvent
	if scheduleAt != "" {
		startAt, err := time.Parse(time.RFC3339, scheduleAt)
		if err != nil {
			return fmt.Errorf("parse schedule-at: %w", err)
		}
		events, err = app.NewScheduler(driver, log, time.Second).RunAt(ctx, startAt, job)
		if err != nil {
			return err
		}
	} else {
		events = driver.Run(ctx, job)
	}

	for ev := range events {
		printEvent(ev)
	}
	return nil
}

// loadRows parses the CSV into recipient rows, keeping column order for
// phone-field discovery.
func loadRows(path string) ([]app.RecipientRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv needs a header row and at least one recipient")
	}

	header := records[0]
	rows := make([]app.RecipientRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				values[col] = rec[i]
			}
		}
		rows = append(rows, app.RecipientRow{Columns: header, Values: values})
	}
	return rows, nil
}

func sendTest(ctx context.Context, log *slog.Logger, gateway ports.ProviderGateway, renderer *template.Renderer, tpl string, creds domain.ProviderConfig, rows []app.RecipientRow, to string) error {
	fields := map[string]string{}
	if len(rows) > 0 {
		fields = rows[0].Values
	}
	body := renderer.Render(tpl, fields)

	out, err := gateway.Send(ctx, phone.Normalize(to), body, creds)
	if err != nil {
		return fmt.Errorf("test send: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("test send rejected: %s", out.Error)
	}
	log.Info("test message sent", "to", phone.FormatDisplay(to), "provider_id", out.ProviderMessageID)
	return nil
}

func credentials(conf cfg.Config, providerType string) domain.ProviderConfig {
	switch providerType {
	case domain.ProviderTwilio:
		return domain.ProviderConfig{
			"accountSid": conf.TwilioAccountSID,
			"authToken":  conf.TwilioAuthToken,
			"fromNumber": conf.TwilioFromNumber,
		}
	case domain.ProviderTextBee:
		return domain.ProviderConfig{
			"apiKey":   conf.TextBeeAPIKey,
			"deviceId": conf.TextBeeDeviceID,
		}
	default:
		return domain.ProviderConfig{}
	}
}

func printEvent(ev app.ProgressEvent) {
	stamp := ev.At.Format("15:04:05")
	switch ev.Kind {
	case app.EventSent:
		fmt.Printf("[%s] sent to %s (id %s), %d sent, %d failed\n", stamp, ev.To, ev.Detail, ev.Sent, ev.Failed)
	case app.EventFailed:
		fmt.Printf("[%s] FAILED to %s: %s, %d sent, %d failed\n", stamp, ev.To, ev.Detail, ev.Sent, ev.Failed)
	case app.EventSkipped:
		fmt.Printf("[%s] row %d skipped: %s\n", stamp, ev.Index+1, ev.Detail)
	case app.EventWaiting:
		fmt.Printf("\r[%s] %s", stamp, ev.Detail)
	case app.EventWaitCancelled:
		fmt.Printf("\n[%s] %s\n", stamp, ev.Detail)
	default:
		fmt.Printf("[%s] %s\n", stamp, ev.Detail)
	}
}
