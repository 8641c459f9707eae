package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/media"
	"github.com/chitter-chat/chitter-server/internal/memstore"
)

type testEnv struct {
	app       *fiber.App
	uploadDir string
}

// newEnv wires the handler over the in-memory backend and a real local file
// store so handler tests exercise the full request path.
func newEnv(t *testing.T, opts ...func(*Handler)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	files, err := media.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	t.Cleanup(func() { _ = files.Close() })

	svc, err := memstore.New(credential.NewMemory(), files, zerolog.Nop())
	if err != nil {
		t.Fatalf("memstore.New() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	h := New(svc, files, 10<<20, "", nil, zerolog.Nop())
	for _, opt := range opts {
		opt(h)
	}
	app := fiber.New()
	h.Register(app)
	return &testEnv{app: app, uploadDir: dir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

// createRoom drives the real endpoint and returns the nested payload.
func createRoom(t *testing.T, e *testEnv, roomName, adminName string) (roomID string, adminToken string, generalChannelID string) {
	t.Helper()
	status, body := e.do(t, "POST", "/api/createRoomAndAdmin", "", fiber.Map{
		"roomName":  roomName,
		"adminName": adminName,
	})
	if status != fiber.StatusOK {
		t.Fatalf("createRoomAndAdmin status = %d, body = %v", status, body)
	}
	data := body["data"].(map[string]any)
	room := data["room"].(map[string]any)
	admin := data["admin"].(map[string]any)
	general := data["generalChannel"].(map[string]any)
	return room["id"].(string), admin["token"].(string), general["id"].(string)
}

func TestCreateRoomAndAdmin_ScrubsMarkup(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.do(t, "POST", "/api/createRoomAndAdmin", "", fiber.Map{
		"roomName":  "<script>alert(1)</script>Den",
		"adminName": "<b>alice</b>",
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	data := body["data"].(map[string]any)
	room := data["room"].(map[string]any)
	admin := data["admin"].(map[string]any)
	if room["displayName"] != "Den" {
		t.Errorf("room displayName = %v, want markup stripped", room["displayName"])
	}
	if admin["displayName"] != "alice" {
		t.Errorf("admin displayName = %v, want markup stripped", admin["displayName"])
	}
	if tok, _ := admin["token"].(string); tok == "" {
		t.Error("admin token missing from creation response")
	}
}

func TestCreateRoomAndAdmin_Validation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.do(t, "POST", "/api/createRoomAndAdmin", "", fiber.Map{
		"adminName": "alice",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body["error"] != apierrors.ErrInvalidParameters.Tag {
		t.Errorf("error = %v, want %q", body["error"], apierrors.ErrInvalidParameters.Tag)
	}
	details, _ := body["validationErrors"].([]any)
	if len(details) == 0 {
		t.Error("validationErrors missing for a failed field")
	}
}

func TestTaggedServiceErrorIs400(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	roomID, _, _ := createRoom(t, e, "Den", "alice")

	status, body := e.do(t, "GET", "/api/getRoom?roomId="+roomID, "bogus-token", nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body["error"] != apierrors.ErrInvalidUserToken.Tag {
		t.Errorf("error = %v, want %q", body["error"], apierrors.ErrInvalidUserToken.Tag)
	}
}

func TestInviteAndMessageFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, generalID := createRoom(t, e, "Den", "alice")

	status, body := e.do(t, "POST", "/api/createInviteCode", adminToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("createInviteCode status = %d, body = %v", status, body)
	}
	code := body["data"].(map[string]any)["inviteCode"].(string)

	status, body = e.do(t, "POST", "/api/createUserFromInviteCode", "", fiber.Map{
		"inviteCode":  code,
		"displayName": "bob",
	})
	if status != fiber.StatusOK {
		t.Fatalf("createUserFromInviteCode status = %d, body = %v", status, body)
	}
	bobToken := body["data"].(map[string]any)["token"].(string)

	for i := 0; i < 3; i++ {
		status, body = e.do(t, "POST", "/api/createMessage", bobToken, fiber.Map{
			"content":   fiber.Map{"text": fmt.Sprintf("message %d", i)},
			"channelId": generalID,
		})
		if status != fiber.StatusOK {
			t.Fatalf("createMessage status = %d, body = %v", status, body)
		}
	}

	status, body = e.do(t, "GET", "/api/getMessages?channelId="+generalID+"&limit=2", bobToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("getMessages status = %d, body = %v", status, body)
	}
	page := body["data"].([]any)
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	first := page[0].(map[string]any)
	if first["id"].(float64) != 3 {
		t.Errorf("newest message id = %v, want 3", first["id"])
	}
	author, _ := first["user"].(map[string]any)
	if author == nil || author["displayName"] != "bob" {
		t.Errorf("author = %v, want bob", first["user"])
	}
	if _, leaked := author["token"]; leaked {
		t.Error("message author leaked a token")
	}

	// The cursor pages past the first two.
	status, body = e.do(t, "GET", "/api/getMessages?channelId="+generalID+"&cursor=2", bobToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("getMessages(cursor) status = %d, body = %v", status, body)
	}
	rest := body["data"].([]any)
	if len(rest) != 1 || rest[0].(map[string]any)["id"].(float64) != 1 {
		t.Errorf("cursor page = %v, want just message 1", rest)
	}
}

func TestGetMessages_QueryValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, generalID := createRoom(t, e, "Den", "alice")

	queries := []string{
		"channelId=" + generalID + "&limit=101",
		"channelId=" + generalID + "&limit=0",
		"channelId=" + generalID + "&limit=abc",
		"channelId=" + generalID + "&cursor=abc",
		"channelId=not-a-uuid",
	}
	for _, q := range queries {
		status, body := e.do(t, "GET", "/api/getMessages?"+q, adminToken, nil)
		if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidParameters.Tag {
			t.Errorf("query %q: status = %d, error = %v, want 400 invalid parameters", q, status, body["error"])
		}
	}
}

func TestSetUserRole_RejectsUnknownRole(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, _ := createRoom(t, e, "Den", "alice")

	status, body := e.do(t, "POST", "/api/setUserRole", adminToken, fiber.Map{
		"userId": "0b0e7759-6138-4f5c-a237-a27d9ad5e003",
		"role":   "owner",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body["error"] != apierrors.ErrInvalidParameters.Tag {
		t.Errorf("error = %v, want invalid parameters from the oneof rule", body["error"])
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, token, filename string, payload []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/uploadAttachment", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test(upload) error = %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestUploadAttachment(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, _ := createRoom(t, e, "Den", "alice")

	status, body := e.upload(t, adminToken, "pixel.png", pngBytes(t))
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["type"] != "image" {
		t.Errorf("type = %v, want image", data["type"])
	}
	if data["fileName"] != "pixel.png" {
		t.Errorf("fileName = %v, want pixel.png", data["fileName"])
	}
	if data["width"].(float64) != 2 || data["height"].(float64) != 3 {
		t.Errorf("dimensions = %vx%v, want 2x3", data["width"], data["height"])
	}
	if files := uploadedFiles(t, e.uploadDir); len(files) != 1 {
		t.Errorf("upload dir holds %v, want one stored file", files)
	}
}

func TestUploadAttachment_RejectsUnsupportedType(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, _ := createRoom(t, e, "Den", "alice")

	status, body := e.upload(t, adminToken, "notes.txt", []byte("plain text"))
	if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidFileType.Tag {
		t.Errorf("status = %d, error = %v, want 400 invalid file type", status, body["error"])
	}
	if files := uploadedFiles(t, e.uploadDir); len(files) != 0 {
		t.Errorf("upload dir holds %v, want nothing stored", files)
	}
}

func TestUploadAttachment_SizeCeiling(t *testing.T) {
	t.Parallel()
	e := newEnv(t, func(h *Handler) { h.maxUploadBytes = 8 })
	_, adminToken, _ := createRoom(t, e, "Den", "alice")

	status, body := e.upload(t, adminToken, "pixel.png", pngBytes(t))
	if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidFileType.Tag {
		t.Errorf("status = %d, error = %v, want 400 invalid file type", status, body["error"])
	}
}

func TestUploadAttachment_UnlinksOnRejection(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	// No such token: the service rejects after the bytes already landed.
	status, body := e.upload(t, "bogus", "pixel.png", pngBytes(t))
	if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidToken.Tag {
		t.Fatalf("status = %d, error = %v, want 400 invalid token", status, body["error"])
	}
	if files := uploadedFiles(t, e.uploadDir); len(files) != 0 {
		t.Errorf("upload dir holds %v, want rejected upload unlinked", files)
	}
}

func TestRemoveAttachment(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, adminToken, _ := createRoom(t, e, "Den", "alice")

	status, body := e.upload(t, adminToken, "pixel.png", pngBytes(t))
	if status != fiber.StatusOK {
		t.Fatalf("upload status = %d, body = %v", status, body)
	}
	attachmentID := body["data"].(map[string]any)["id"].(string)

	status, body = e.do(t, "DELETE", "/api/removeAttachment", adminToken, fiber.Map{
		"attachmentId": attachmentID,
	})
	if status != fiber.StatusOK {
		t.Fatalf("removeAttachment status = %d, body = %v", status, body)
	}
	if files := uploadedFiles(t, e.uploadDir); len(files) != 0 {
		t.Errorf("upload dir holds %v, want file unlinked", files)
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	called := make(chan struct{})
	e := newEnv(t, func(h *Handler) {
		h.shutdownToken = "s3cret"
		h.shutdown = func() { close(called) }
	})

	status, body := e.do(t, "POST", "/api/shutdown", "wrong", nil)
	if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidToken.Tag {
		t.Fatalf("wrong token: status = %d, error = %v", status, body["error"])
	}

	status, body = e.do(t, "POST", "/api/shutdown", "s3cret", nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown func was never invoked")
	}
}

func TestShutdown_DisabledWithoutToken(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.do(t, "POST", "/api/shutdown", "", nil)
	if status != fiber.StatusBadRequest || body["error"] != apierrors.ErrInvalidToken.Tag {
		t.Errorf("status = %d, error = %v, want 400 invalid token", status, body["error"])
	}
}

// failingService returns an untagged error from every operation a test routes
// to it.
type failingService struct {
	chat.Service
}

func (failingService) CreateInviteCode(context.Context, string) (string, error) {
	return "", errors.New("connection reset by peer")
}

func TestUntaggedServiceErrorIs500(t *testing.T) {
	t.Parallel()
	h := New(failingService{}, nil, 10<<20, "", nil, zerolog.Nop())
	app := fiber.New()
	h.Register(app)

	req := httptest.NewRequest("POST", "/api/createInviteCode", nil)
	req.Header.Set("Authorization", "whatever")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != apierrors.ErrUnknownServerError.Tag {
		t.Errorf("error = %v, want %q", body["error"], apierrors.ErrUnknownServerError.Tag)
	}
}
