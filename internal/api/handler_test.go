//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/leadintel/internal/chat"
	"github.com/ashureev/leadintel/internal/config"
	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/inference"
	"github.com/ashureev/leadintel/internal/live"
	"github.com/ashureev/leadintel/internal/middleware"
	"github.com/ashureev/leadintel/internal/provider"
)

type fakeRepo struct {
	*credential.MemoryAdapter

	mu      sync.Mutex
	devices map[string]*domain.Device
	pingErr error
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		MemoryAdapter: credential.NewMemoryAdapter(),
		devices:       make(map[string]*domain.Device),
	}
}

func (f *fakeRepo) Save(ctx context.Context, owner string, p domain.Provider, token string) error {
	f.mu.Lock()
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryAdapter.Save(ctx, owner, p, token)
}

func (f *fakeRepo) setErrors(ping, save error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = ping
	f.saveErr = save
}

func (f *fakeRepo) GetDevice(_ context.Context, id string) (*domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.devices[id]
	if d == nil {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (f *fakeRepo) UpsertDevice(_ context.Context, d *domain.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *d
	f.devices[d.UserID] = &copy
	return nil
}

func (f *fakeRepo) TouchDevice(context.Context, string, time.Time) error { return nil }
func (f *fakeRepo) Close() error                                        { return nil }

func (f *fakeRepo) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

const testDevice = "dev_0123456789abcdef0123456789abcdef"

type testEnv struct {
	repo   *fakeRepo
	server *httptest.Server

	mu     sync.Mutex
	chatFn http.HandlerFunc
	infFn  http.HandlerFunc
}

func (e *testEnv) setChat(fn http.HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chatFn = fn
}

func (e *testEnv) setInference(fn http.HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.infFn = fn
}

// newTestEnv wires a router with fake providers. Requests carry a fixed
// device id and the tab from the X-Tab header.
func newTestEnv(t *testing.T, perMinute, burst int) *testEnv {
	t.Helper()
	env := &testEnv{repo: newFakeRepo()}
	env.repo.devices[testDevice] = &domain.Device{UserID: testDevice, Username: "device-89abcdef"}

	env.chatFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	}
	env.infFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"label":"positive","score":0.9}]`)
	}
	providers := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		chatFn, infFn := env.chatFn, env.infFn
		env.mu.Unlock()
		if strings.HasPrefix(r.URL.Path, "/chat/") {
			chatFn(w, r)
			return
		}
		infFn(w, r)
	}))
	t.Cleanup(providers.Close)

	cfg := config.Default()
	vault := credential.NewVault(env.repo, nil)
	chatClient := provider.NewChatClient(provider.ChatConfig{BaseURL: providers.URL, Model: cfg.Chat.Model, MaxTokens: 10}, providers.Client(), nil)
	infClient := provider.NewInferenceClient(provider.InferenceConfig{BaseURL: providers.URL}, providers.Client(), nil)

	h := NewHandler(Deps{
		Repo:       env.repo,
		Vault:      vault,
		Chats:      chat.NewRegistry(chat.Config{SystemPrompt: cfg.Chat.SystemPrompt}, chatClient, vault, nil),
		Inferences: inference.NewRegistry(infClient, vault, nil),
		Hub:        live.NewHub(),
		Config:     cfg,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithIdentity(req.Context(), testDevice, req.Header.Get("X-Tab"))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHealthHandler(env.repo, time.Second).RegisterHealth(r)
	h.RegisterRoutes(r, middleware.NewRateLimiter(perMinute, burst))

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, tab string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Tab", tab)

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func turnsOf(t *testing.T, body map[string]interface{}) []map[string]interface{} {
	t.Helper()
	c, ok := body["chat"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing chat in %v", body)
	}
	raw := c["turns"].([]interface{})
	out := make([]map[string]interface{}, len(raw))
	for i, v := range raw {
		out[i] = v.(map[string]interface{})
	}
	return out
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{domain.ErrMissingCredential, http.StatusBadRequest},
		{domain.ErrEmptyInput, http.StatusBadRequest},
		{domain.ErrUnsupportedTask, http.StatusBadRequest},
		{&domain.TransportError{Provider: domain.ProviderChat, StatusCode: 500}, http.StatusBadGateway},
		{domain.ErrMalformedResponse, http.StatusBadGateway},
		{errors.Join(errors.New("submit"), &domain.TransportError{Provider: domain.ProviderInference}), http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 60, 10)

	code, body := env.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("unexpected health response %d %v", code, body)
	}

	env.repo.setErrors(errors.New("down"), nil)
	code, body = env.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Errorf("expected degraded, got %d %v", code, body)
	}
}

func TestGetMeAndConfig(t *testing.T) {
	env := newTestEnv(t, 60, 10)

	code, me := env.do(t, http.MethodGet, "/api/me", "tab-1", nil)
	if code != http.StatusOK || me["user_id"] != testDevice || me["session_id"] != "tab-1" {
		t.Errorf("unexpected /api/me: %d %v", code, me)
	}
	if me["live"] != false {
		t.Errorf("expected no live connection, got %v", me["live"])
	}

	code, cfg := env.do(t, http.MethodGet, "/api/config", "", nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if cfg["default_view"] != "dashboard" || cfg["default_task"] != "sentiment-analysis" {
		t.Errorf("unexpected defaults: %v", cfg)
	}
	if len(cfg["tasks"].([]interface{})) != 4 {
		t.Errorf("expected 4 tasks, got %v", cfg["tasks"])
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	env := newTestEnv(t, 60, 10)

	_, got := env.do(t, http.MethodGet, "/api/credentials/chat-provider", "", nil)
	if got["token"] != "" || got["configured"] != false {
		t.Errorf("expected empty credential, got %v", got)
	}

	for i := 0; i < 2; i++ {
		code, _ := env.do(t, http.MethodPut, "/api/credentials/chat-provider", "", credentialRequest{Token: "tok1"})
		if code != http.StatusOK {
			t.Fatalf("put credential: %d", code)
		}
	}

	_, got = env.do(t, http.MethodGet, "/api/credentials/chat-provider", "", nil)
	if got["token"] != "tok1" || got["configured"] != true {
		t.Errorf("expected tok1, got %v", got)
	}
}

func TestCredentialPersistFailureStillVisible(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	env.repo.setErrors(nil, errors.New("disk full"))

	code, _ := env.do(t, http.MethodPut, "/api/credentials/inference-provider", "", credentialRequest{Token: "hf"})
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	_, got := env.do(t, http.MethodGet, "/api/credentials/inference-provider", "", nil)
	if got["token"] != "hf" {
		t.Errorf("expected cached token, got %v", got)
	}
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t, 60, 10)

	code, body := env.do(t, http.MethodPost, "/api/chat/messages", "", chatMessageRequest{Text: "hello"})
	if code != http.StatusBadRequest || body["error"] != domain.ErrMissingCredential.Error() {
		t.Errorf("expected missing credential, got %d %v", code, body)
	}

	env.do(t, http.MethodPut, "/api/credentials/chat-provider", "", credentialRequest{Token: "tok1"})

	code, body = env.do(t, http.MethodPost, "/api/chat/messages", "", chatMessageRequest{Text: "hello"})
	if code != http.StatusOK {
		t.Fatalf("send: %d %v", code, body)
	}
	turns := turnsOf(t, body)
	if len(turns) != 2 || turns[0]["content"] != "hello" || turns[1]["content"] != "hi there" {
		t.Errorf("unexpected transcript %v", turns)
	}

	env.setChat(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	code, body = env.do(t, http.MethodPost, "/api/chat/messages", "", chatMessageRequest{Text: "again"})
	if code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", code)
	}
	turns = turnsOf(t, body)
	if len(turns) != 4 || turns[3]["content"] != chat.ErrorReply {
		t.Errorf("expected error turn, got %v", turns)
	}

	// Another tab has its own conversation.
	_, other := env.do(t, http.MethodGet, "/api/chat", "tab-2", nil)
	if len(turnsOf(t, other)) != 0 {
		t.Error("expected empty transcript in other tab")
	}

	_, body = env.do(t, http.MethodDelete, "/api/chat", "", nil)
	if len(turnsOf(t, body)) != 0 {
		t.Error("expected cleared transcript")
	}
}

func TestChatEmptyMessage(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	code, _ := env.do(t, http.MethodPost, "/api/chat/messages", "", chatMessageRequest{Text: "   "})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestInferenceFlow(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	env.do(t, http.MethodPut, "/api/credentials/inference-provider", "", credentialRequest{Token: "hf"})

	paths := make(chan string, 1)
	env.setInference(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = io.WriteString(w, `{"answer":"good"}`)
	})

	code, body := env.do(t, http.MethodPost, "/api/inference", "", inferenceRequest{Task: inference.TaskQuestionAnswering, Input: "ACME, 500 staff"})
	if code != http.StatusOK {
		t.Fatalf("submit: %d %v", code, body)
	}
	if got := <-paths; got != "/models/deepset/roberta-base-squad2" {
		t.Errorf("unexpected model path %q", got)
	}
	snap := body["inference"].(map[string]interface{})
	if snap["display"] != "{\n  \"answer\": \"good\"\n}" || snap["state"] != "idle" {
		t.Errorf("unexpected snapshot %v", snap)
	}

	code, body = env.do(t, http.MethodPost, "/api/inference", "", inferenceRequest{Task: "translation", Input: "x"})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported task, got %d", code)
	}
	if body["inference"].(map[string]interface{})["display"] != "Error: unsupported task" {
		t.Errorf("unexpected display %v", body)
	}

	_, body = env.do(t, http.MethodPut, "/api/inference/selected", "", selectTaskRequest{Task: inference.TaskSummarization})
	if body["inference"].(map[string]interface{})["selected"] != "summarization" {
		t.Errorf("unexpected selection %v", body)
	}
}

func TestInferenceRateLimited(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	code, _ := env.do(t, http.MethodPost, "/api/inference", "", inferenceRequest{Input: "x"})
	if code != http.StatusBadRequest {
		t.Fatalf("first request should reach the orchestrator, got %d", code)
	}
	code, body := env.do(t, http.MethodPost, "/api/inference", "", inferenceRequest{Input: "x"})
	if code != http.StatusTooManyRequests || body["error"] != "rate limit exceeded" {
		t.Errorf("expected 429, got %d %v", code, body)
	}
}

func TestViews(t *testing.T) {
	env := newTestEnv(t, 60, 10)

	_, body := env.do(t, http.MethodGet, "/api/views/active", "", nil)
	if body["active"] != "dashboard" {
		t.Errorf("expected default view, got %v", body)
	}

	_, body = env.do(t, http.MethodPut, "/api/views/active", "", setViewRequest{ID: "mistral-chat"})
	if body["active"] != "mistral-chat" {
		t.Errorf("unexpected active %v", body)
	}

	_, panel := env.do(t, http.MethodGet, "/api/views/render", "", nil)
	if panel["id"] != "mistral-chat" {
		t.Errorf("unexpected panel %v", panel)
	}
	data := panel["data"].(map[string]interface{})
	if _, ok := data["conversation_id"]; !ok {
		t.Errorf("expected chat panel data, got %v", data)
	}

	env.do(t, http.MethodPut, "/api/views/active", "", setViewRequest{ID: "leads"})
	_, panel = env.do(t, http.MethodGet, "/api/views/render", "", nil)
	if panel["id"] != "leads" || panel["data"] != nil {
		t.Errorf("expected empty leads panel, got %v", panel)
	}

	// Other tabs keep their own view.
	_, body = env.do(t, http.MethodGet, "/api/views/active", "tab-2", nil)
	if body["active"] != "dashboard" {
		t.Errorf("expected default in other tab, got %v", body)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	code, _ := env.do(t, http.MethodPost, "/api/chat/messages", "", map[string]string{"message": "hi"})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

// waitFor polls fn until it returns true or the deadline passes.
func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// postAndDisconnect sends a POST and cancels it once started is signalled.
func (e *testEnv) postAndDisconnect(t *testing.T, path string, body interface{}, started <-chan struct{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.server.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		resp, err := e.server.Client().Do(req)
		if err == nil {
			resp.Body.Close()
		}
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("provider never received the request")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the client request to be cancelled, got %v", err)
	}
}

func TestChatReplyAppliedAfterClientDisconnect(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	env.do(t, http.MethodPut, "/api/credentials/chat-provider", "", credentialRequest{Token: "tok1"})

	started := make(chan struct{})
	release := make(chan struct{})
	env.setChat(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	})

	env.postAndDisconnect(t, "/api/chat/messages", chatMessageRequest{Text: "hello"}, started)
	close(release)

	var turns []map[string]interface{}
	waitFor(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/chat", "", nil)
		turns = turnsOf(t, body)
		return len(turns) == 2
	})
	if turns[0]["content"] != "hello" || turns[1]["content"] != "hi there" {
		t.Errorf("expected the provider reply, got %v", turns)
	}
}

func TestInferenceResultAppliedAfterClientDisconnect(t *testing.T) {
	env := newTestEnv(t, 60, 10)
	env.do(t, http.MethodPut, "/api/credentials/inference-provider", "", credentialRequest{Token: "hf"})

	started := make(chan struct{})
	release := make(chan struct{})
	env.setInference(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = io.WriteString(w, `[{"label":"positive","score":0.9}]`)
	})

	env.postAndDisconnect(t, "/api/inference", inferenceRequest{Input: "great lead"}, started)
	close(release)

	var snap map[string]interface{}
	waitFor(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/inference", "", nil)
		snap = body["inference"].(map[string]interface{})
		return snap["state"] == "idle" && snap["display"] != ""
	})
	if !strings.Contains(snap["display"].(string), `"label": "positive"`) {
		t.Errorf("expected the provider result, got %v", snap)
	}
}
