package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	userapp "github.com/orientati/user-service/internal/application"
	"github.com/orientati/user-service/internal/domain/entity"
	"github.com/orientati/user-service/pkg/events"
	"github.com/orientati/user-service/pkg/validation"
)

const testVerifyURL = "https://accounts.example.com/verify-email"

// ---- in-memory service collaborators ----

type fakeRepo struct {
	users map[string]*entity.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*entity.User{}}
}

func cloneUser(u *entity.User) *entity.User {
	cp := *u
	if u.VerifyEmailToken != nil {
		tok := *u.VerifyEmailToken
		cp.VerifyEmailToken = &tok
	}
	if u.VerifyEmailTokenExpiration != nil {
		exp := *u.VerifyEmailTokenExpiration
		cp.VerifyEmailTokenExpiration = &exp
	}
	return &cp
}

func (r *fakeRepo) List(_ context.Context, limit, offset int) ([]*entity.User, error) {
	out := []*entity.User{}
	seen := 0
	for _, u := range r.users {
		if seen < offset {
			seen++
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, userapp.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, userapp.ErrNotFound
}

func (r *fakeRepo) FindByVerificationToken(_ context.Context, token string) (*entity.User, error) {
	for _, u := range r.users {
		if u.VerifyEmailToken != nil && *u.VerifyEmailToken == token {
			return cloneUser(u), nil
		}
	}
	return nil, userapp.ErrNotFound
}

func (r *fakeRepo) Insert(_ context.Context, u *entity.User) error {
	u.ID = uuid.NewString()
	u.EmailVerified = false
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *fakeRepo) Update(_ context.Context, u *entity.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return userapp.ErrNotFound
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return userapp.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeAtomic struct{}

func (fakeAtomic) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordedEvent struct {
	topic     string
	eventType string
	payload   any
}

type fakePublisher struct {
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, topic, eventType string, payload any) error {
	p.events = append(p.events, recordedEvent{topic: topic, eventType: eventType, payload: payload})
	return nil
}

func (p *fakePublisher) lastEmail(t *testing.T) events.EmailPayload {
	t.Helper()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].topic == events.TopicEmail {
			return p.events[i].payload.(events.EmailPayload)
		}
	}
	t.Fatalf("no email event recorded")
	return events.EmailPayload{}
}

type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (fakeHasher) Verify(plain, hashed string) bool  { return hashed == "hashed:"+plain }

// ---- helpers ----

func newTestRouter(t *testing.T) (*gin.Engine, *fakePublisher, *fakeRepo) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	validation.Init()

	repo := newFakeRepo()
	pub := &fakePublisher{}
	tokens := userapp.NewTokenManager(repo, fakeAtomic{}, userapp.SystemClock{}, 30*time.Minute)
	svc := userapp.NewService(repo, fakeAtomic{}, tokens, pub, fakeHasher{}, userapp.SystemClock{}, testVerifyURL, nil)
	h := NewUserHandler(svc, nil)

	r := gin.New()
	g := r.Group("/users")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/change_password", h.ChangePassword)
	g.POST("/request_email_verification", h.RequestEmailVerification)
	g.POST("/verify_email", h.VerifyEmail)
	return r, pub, repo
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type errEnvelope struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
	URL     string            `json:"url"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) errEnvelope {
	t.Helper()
	var env errEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode error envelope: %v; body: %s", err, w.Body.String())
	}
	return env
}

type userBody struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Surname       string `json:"surname"`
}

func createBody() map[string]any {
	return map[string]any{
		"email":           "ada@example.com",
		"name":            "Ada",
		"surname":         "Lovelace",
		"hashed_password": "hashed:secret",
	}
}

func createUserViaAPI(t *testing.T, router *gin.Engine, body map[string]any) userBody {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/users", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d; body: %s", w.Code, w.Body.String())
	}
	var u userBody
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	return u
}

// ---- tests ----

func TestCreateEndpoint(t *testing.T) {
	router, pub, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/users", createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d; body: %s", w.Code, w.Body.String())
	}

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if _, err := uuid.Parse(raw["id"].(string)); err != nil {
		t.Fatalf("expected uuid id, got %v", raw["id"])
	}
	if raw["email_verified"] != false {
		t.Fatalf("new user must be unverified")
	}
	for _, secret := range []string{"hashed_password", "verify_email_token", "verify_email_token_expiration"} {
		if _, ok := raw[secret]; ok {
			t.Fatalf("response must not expose %q", secret)
		}
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected CREATE and SEND events, got %+v", pub.events)
	}
	if pub.events[0].eventType != events.TypeCreate || pub.events[1].eventType != events.TypeSend {
		t.Fatalf("unexpected event sequence %+v", pub.events)
	}
}

func TestCreateEndpoint_DuplicateEmail(t *testing.T) {
	router, _, _ := newTestRouter(t)
	createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodPost, "/users", createBody())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Bad Request" || env.URL != "/users" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Details["message"] != "Email already in use" || env.Details["type"] != "email_taken" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestCreateEndpoint_InvalidEmail(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := createBody()
	body["email"] = "not-an-email"
	w := doRequest(router, http.MethodPost, "/users", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Details["type"] != "invalid_email" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestCreateEndpoint_MissingCredential(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := createBody()
	delete(body, "hashed_password")
	w := doRequest(router, http.MethodPost, "/users", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Details["hashed_password"] != "is required" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestGetEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodGet, "/users/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got userBody
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if got.ID != created.ID || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestGetEndpoint_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	id := uuid.NewString()
	w := doRequest(router, http.MethodGet, "/users/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Not Found" || env.Details["message"] != "User not found" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.URL != "/users/"+id {
		t.Fatalf("envelope url must echo the request path, got %q", env.URL)
	}
}

func TestGetEndpoint_MalformedID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/users/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Details["message"] != "id must be a valid UUID" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestListEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty listing must be an empty array, got %s", w.Body.String())
	}

	createUserViaAPI(t, router, createBody())
	second := createBody()
	second["email"] = "blaise@example.com"
	createUserViaAPI(t, router, second)

	w = doRequest(router, http.MethodGet, "/users?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var page []userBody
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 user, got %d", len(page))
	}
}

func TestListEndpoint_RejectsBadPaging(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, qs := range []string{"?limit=-1", "?offset=-5", "?limit=abc"} {
		w := doRequest(router, http.MethodGet, "/users"+qs, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", qs, w.Code)
		}
	}
}

func TestUpdateEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodPatch, "/users/"+created.ID, map[string]any{"name": "Augusta"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	var got userBody
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if got.Name != "Augusta" {
		t.Fatalf("expected updated name, got %q", got.Name)
	}
	if got.Email != "ada@example.com" || got.Surname != "Lovelace" {
		t.Fatalf("omitted fields must stay untouched, got %+v", got)
	}
}

func TestUpdateEndpoint_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPatch, "/users/"+uuid.NewString(), map[string]any{"name": "X"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodPost, "/users/change_password", map[string]any{
		"user_id":      created.ID,
		"old_password": "secret",
		"new_password": "brand-new",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d; body: %s", w.Code, w.Body.String())
	}

	// The new credential is now the one that verifies.
	w = doRequest(router, http.MethodPost, "/users/change_password", map[string]any{
		"user_id":      created.ID,
		"old_password": "brand-new",
		"new_password": "another",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with rotated credential, got %d", w.Code)
	}
}

func TestChangePasswordEndpoint_WrongOldPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodPost, "/users/change_password", map[string]any{
		"user_id":      created.ID,
		"old_password": "wrong",
		"new_password": "brand-new",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Details["message"] != "Password change failed" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestChangePasswordEndpoint_BadUserID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/users/change_password", map[string]any{
		"user_id":      "not-a-uuid",
		"old_password": "a",
		"new_password": "b",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Details["user_id"] != "must be a valid UUID" {
		t.Fatalf("unexpected details %+v", env.Details)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	router, pub, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodDelete, "/users/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	last := pub.events[len(pub.events)-1]
	if last.eventType != events.TypeDelete {
		t.Fatalf("expected DELETE event, got %+v", last)
	}
	if payload := last.payload.(events.UserDeletedPayload); payload.ID != created.ID {
		t.Fatalf("unexpected DELETE payload %+v", payload)
	}

	w = doRequest(router, http.MethodDelete, "/users/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", w.Code)
	}
}

func TestVerificationFlowEndpoints(t *testing.T) {
	router, pub, _ := newTestRouter(t)
	created := createUserViaAPI(t, router, createBody())

	w := doRequest(router, http.MethodPost, "/users/request_email_verification", map[string]any{
		"user_id": created.ID,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d; body: %s", w.Code, w.Body.String())
	}

	job := pub.lastEmail(t)
	if job.To != "ada@example.com" {
		t.Fatalf("unexpected recipient %q", job.To)
	}
	link, err := neturl.Parse(job.Context.Link)
	if err != nil {
		t.Fatalf("bad verification link: %v", err)
	}
	token := link.Query().Get("token")
	if token == "" {
		t.Fatalf("verification link must carry a token: %s", job.Context.Link)
	}

	w = doRequest(router, http.MethodPost, "/users/verify_email", map[string]any{"token": token})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d; body: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/users/"+created.ID, nil)
	var got userBody
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if !got.EmailVerified {
		t.Fatalf("user must be verified after redemption")
	}

	// The redeemed token is gone; replaying it is a 404.
	w = doRequest(router, http.MethodPost, "/users/verify_email", map[string]any{"token": token})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on token reuse, got %d", w.Code)
	}
}

func TestVerifyEmailEndpoint_UnknownToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/users/verify_email", map[string]any{"token": "bogus"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHealthHandler("user-service")
	r.GET("/health", h.Health)

	w := doRequest(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "user-service" {
		t.Fatalf("unexpected body %+v", body)
	}
}
