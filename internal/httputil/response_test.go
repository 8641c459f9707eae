package httputil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
)

func doRequest(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return resp.StatusCode, body
}

func TestSuccess(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/ok", func(c fiber.Ctx) error {
		return Success(c, fiber.Map{"value": 7})
	})

	status, body := doRequest(t, app, "/ok")
	if status != fiber.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	data, _ := body["data"].(map[string]any)
	if data["value"] != float64(7) {
		t.Errorf("data = %v", body["data"])
	}
}

func TestFail(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/bad", func(c fiber.Ctx) error {
		return Fail(c, fiber.StatusBadRequest, apierrors.ErrRoomNotFound.Tag)
	})

	status, body := doRequest(t, app, "/bad")
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if body["success"] != false || body["error"] != apierrors.ErrRoomNotFound.Tag {
		t.Errorf("body = %v", body)
	}
	if _, present := body["validationErrors"]; present {
		t.Error("validationErrors should be omitted when empty")
	}
}

func TestFailValidation(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/invalid", func(c fiber.Ctx) error {
		return FailValidation(c, []string{"roomName is required"})
	})

	status, body := doRequest(t, app, "/invalid")
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if body["error"] != apierrors.ErrInvalidParameters.Tag {
		t.Errorf("error = %v, want %q", body["error"], apierrors.ErrInvalidParameters.Tag)
	}
	details, _ := body["validationErrors"].([]any)
	if len(details) != 1 || details[0] != "roomName is required" {
		t.Errorf("validationErrors = %v", body["validationErrors"])
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(RequestLogger(logger))
	app.Get("/ok", func(c fiber.Ctx) error { return c.SendString("hi") })
	app.Get("/missing", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/boom", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		if _, err := app.Test(httptest.NewRequest("GET", path, nil)); err != nil {
			t.Fatalf("app.Test(%s) error = %v", path, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("logged %d lines, want 3: %q", len(lines), buf.String())
	}

	wantLevels := []string{"info", "warn", "error"}
	wantPaths := []string{"/ok", "/missing", "/boom"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["level"] != wantLevels[i] {
			t.Errorf("line %d level = %v, want %q", i, entry["level"], wantLevels[i])
		}
		if entry["path"] != wantPaths[i] {
			t.Errorf("line %d path = %v, want %q", i, entry["path"], wantPaths[i])
		}
		if _, ok := entry["latency"]; !ok {
			t.Errorf("line %d has no latency field", i)
		}
	}
}
