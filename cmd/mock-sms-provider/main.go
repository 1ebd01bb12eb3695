// mock-sms-provider is a standalone HTTP server that mimics the TextBee
// send endpoint, so a local engine can be pointed at it with
// TEXTBEE_BASE_URL and exercised end to end without a real carrier.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
)

type sendRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

type sendResponse struct {
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	fiberApp := fiber.New(fiber.Config{AppName: "mock-sms-provider", DisableStartupMessage: true})

	fiberApp.Post("/api/v1/gateway/devices/:device/send-sms", func(c *fiber.Ctx) error {
		if c.Get("x-api-key") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "missing api key"})
		}

		var req sendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid body"})
		}
		if len(req.Recipients) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "no recipients"})
		}

		var resp sendResponse
		resp.Message = "sms queued"
		resp.Data.ID = fmt.Sprintf("mock-%d", time.Now().UnixNano())

		log.Info("mock provider received message",
			"device", c.Params("device"),
			"to", req.Recipients[0],
			"provider_id", resp.Data.ID,
		)
		return c.Status(fiber.StatusCreated).JSON(resp)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("mock-sms-provider listening", "addr", addr)
		if err := fiberApp.Listen(addr); err != nil {
			log.Error("fiber listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down mock-sms-provider")
	_ = fiberApp.Shutdown()
}
