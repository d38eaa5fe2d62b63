// Package testutil provides an in-process fake of the push API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ValidOTP is the only code the mock accepts on /users/reset-password.
const ValidOTP = "123456"

// Item is a list record as the mock serves it.
type Item map[string]any

type mockUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Domain    string `json:"domain"`
	APIKey    string `json:"apiKey"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	password  string
}

type failure struct {
	status  int
	message string
}

// MockAPI is a configurable fake push API.
type MockAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	lists    map[string][]Item
	failures map[string]failure
	counts   map[string]int
	total    int
	header   http.Header

	gate     chan struct{}
	inFlight int

	requireAuth bool
	users       map[string]*mockUser
	tokens      map[string]string
	resetEmail  string
	devices     []string
	sent        []Item
}

// NewMockAPI starts a mock server with empty lists.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		lists: map[string][]Item{
			"/subscriptions": {},
			"/notifications": {},
		},
		failures: make(map[string]failure),
		counts:   make(map[string]int),
		users:    make(map[string]*mockUser),
		tokens:   make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(m.track, m.inject)

	r.Post("/users/register", m.handleRegister)
	r.Post("/users/login", m.handleLogin)
	r.Post("/users/forgot-password", m.handleForgotPassword)
	r.Post("/users/reset-password", m.handleResetPassword)
	r.Get("/users/me", m.handleMe)

	r.Group(func(r chi.Router) {
		r.Use(m.authenticate)
		r.Get("/subscriptions", m.handleList("/subscriptions"))
		r.Post("/subscriptions", m.handleCreateSubscription)
		r.Delete("/subscriptions/{id}", m.handleDeleteSubscription)
		r.Post("/subscriptions/devices", m.handleRegisterDevice)
		r.Get("/notifications", m.handleList("/notifications"))
		r.Post("/notifications/send", m.handleSend)
	})

	m.server = httptest.NewServer(r)
	return m
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close releases held requests and shuts the server down.
func (m *MockAPI) Close() {
	m.Release()
	m.server.Close()
}

// SetItems replaces the records served for a list resource.
func (m *MockAPI) SetItems(resource string, items []Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[resource] = append([]Item(nil), items...)
}

// SeedSubscriptions serves n subscriptions with ids sub-1..sub-n, topics
// cycling over topic-0..topic-4.
func (m *MockAPI) SeedSubscriptions(n int) {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			"id":        fmt.Sprintf("sub-%d", i+1),
			"userId":    "user-1",
			"topicName": fmt.Sprintf("topic-%d", i%5),
			"createdAt": "2024-01-01T00:00:00.000Z",
			"updatedAt": "2024-01-01T00:00:00.000Z",
		}
	}
	m.SetItems("/subscriptions", items)
}

// SeedNotifications serves n notification records with ids notif-1..notif-n.
func (m *MockAPI) SeedNotifications(n int) {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			"id":        fmt.Sprintf("notif-%d", i+1),
			"domain":    "example.com",
			"topicName": "news",
			"title":     fmt.Sprintf("Title %d", i+1),
			"body":      "Body",
			"status":    "sent",
			"createdAt": "2024-01-01T00:00:00.000Z",
		}
	}
	m.SetItems("/notifications", items)
}

// SetFailure makes every method+path request answer status with a
// {"message": message} body until ClearFailure. An empty message sends an
// empty JSON object.
func (m *MockAPI) SetFailure(method, path string, status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method+" "+path] = failure{status: status, message: message}
}

// ClearFailure removes an injected failure.
func (m *MockAPI) ClearFailure(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, method+" "+path)
}

// RequireAuth rejects resource requests that carry no token issued by the mock.
func (m *MockAPI) RequireAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = true
}

// AddUser registers an account directly and returns a valid access token for it.
func (m *MockAPI) AddUser(email, password, domain string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addUserLocked(email, password, domain)
	return m.issueTokenLocked(email)
}

// Hold makes list GETs block until Release is called.
func (m *MockAPI) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
}

// Release unblocks every held request.
func (m *MockAPI) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// WaitInFlight waits until n requests are held, returning false on timeout.
func (m *MockAPI) WaitInFlight(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		held := m.inFlight
		m.mu.Unlock()
		if held >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// RequestCount returns the number of requests seen for method+path, or all
// requests when both are empty.
func (m *MockAPI) RequestCount(method, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method == "" && path == "" {
		return m.total
	}
	return m.counts[method+" "+path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header.Clone()
}

// Devices returns the device tokens registered so far.
func (m *MockAPI) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.devices...)
}

// Sent returns the notification payloads accepted by /notifications/send.
func (m *MockAPI) Sent() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.sent...)
}

func (m *MockAPI) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.total++
		m.counts[r.Method+" "+r.URL.Path]++
		m.header = r.Header.Clone()
		m.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (m *MockAPI) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		f, ok := m.failures[r.Method+" "+r.URL.Path]
		m.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.message == "" {
			writeJSON(w, f.status, map[string]any{})
			return
		}
		writeError(w, f.status, f.message)
	})
}

func (m *MockAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		required := m.requireAuth
		m.mu.Unlock()
		if required && m.currentUser(r) == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockAPI) holdIfGated(r *http.Request) {
	m.mu.Lock()
	gate := m.gate
	if gate != nil {
		m.inFlight++
	}
	m.mu.Unlock()
	if gate == nil {
		return
	}

	select {
	case <-gate:
	case <-r.Context().Done():
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
}

func (m *MockAPI) handleList(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, okPage := positiveQueryInt(r, "page", 1)
		perPage, okPerPage := positiveQueryInt(r, "perPage", 20)
		if !okPage || !okPerPage {
			writeError(w, http.StatusBadRequest, "page and perPage must be positive integers")
			return
		}

		m.holdIfGated(r)

		m.mu.Lock()
		all := m.lists[resource]
		if topic := r.URL.Query().Get("topicName"); topic != "" {
			filtered := make([]Item, 0, len(all))
			for _, item := range all {
				if item["topicName"] == topic {
					filtered = append(filtered, item)
				}
			}
			all = filtered
		}
		total := len(all)
		lastPage := (total + perPage - 1) / perPage
		if lastPage < 1 {
			lastPage = 1
		}
		start := (page - 1) * perPage
		end := start + perPage
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
		data := append([]Item{}, all[start:end]...)
		m.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"data": data,
			"meta": map[string]any{
				"page":     page,
				"perPage":  perPage,
				"total":    total,
				"lastPage": lastPage,
				"hasNext":  page < lastPage,
				"hasPrev":  page > 1,
			},
		})
	}
}

func (m *MockAPI) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TopicName string `json:"topicName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.TopicName) == "" {
		writeError(w, http.StatusBadRequest, "topicName should not be empty")
		return
	}

	userID := ""
	if u := m.currentUser(r); u != nil {
		userID = u.ID
	}
	now := time.Now().UTC().Format(time.RFC3339)
	sub := Item{
		"id":        uuid.NewString(),
		"userId":    userID,
		"topicName": body.TopicName,
		"createdAt": now,
		"updatedAt": now,
	}

	m.mu.Lock()
	m.lists["/subscriptions"] = append(m.lists["/subscriptions"], sub)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": sub})
}

func (m *MockAPI) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m.mu.Lock()
	subs := m.lists["/subscriptions"]
	found := -1
	for i, s := range subs {
		if s["id"] == id {
			found = i
			break
		}
	}
	if found >= 0 {
		m.lists["/subscriptions"] = append(subs[:found:found], subs[found+1:]...)
	}
	m.mu.Unlock()

	if found < 0 {
		writeError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"message": "Subscription deleted"}})
}

func (m *MockAPI) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceToken string `json:"deviceToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "deviceToken should not be empty")
		return
	}

	userID := ""
	if u := m.currentUser(r); u != nil {
		userID = u.ID
	}

	m.mu.Lock()
	m.devices = append(m.devices, body.DeviceToken)
	m.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]string{
		"id":          uuid.NewString(),
		"deviceToken": body.DeviceToken,
		"userId":      userID,
		"createdAt":   now,
		"updatedAt":   now,
	}})
}

func (m *MockAPI) handleSend(w http.ResponseWriter, r *http.Request) {
	var body Item
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for _, field := range []string{"domain", "topicName", "title", "body"} {
		if s, _ := body[field].(string); s == "" {
			writeError(w, http.StatusBadRequest, field+" should not be empty")
			return
		}
	}

	messageID := uuid.NewString()
	record := Item{"id": messageID, "status": "sent", "createdAt": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range body {
		record[k] = v
	}

	m.mu.Lock()
	m.sent = append(m.sent, body)
	m.lists["/notifications"] = append(m.lists["/notifications"], record)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"success": true, "messageId": messageID}})
}

func (m *MockAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Domain   string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var problems []string
	if !strings.Contains(body.Email, "@") {
		problems = append(problems, "email must be an email")
	}
	if len(body.Password) < 6 {
		problems = append(problems, "password must be longer than or equal to 6 characters")
	}
	if body.Domain == "" {
		problems = append(problems, "domain should not be empty")
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": problems, "statusCode": http.StatusBadRequest})
		return
	}

	m.mu.Lock()
	if _, exists := m.users[body.Email]; exists {
		m.mu.Unlock()
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	user := m.addUserLocked(body.Email, body.Password, body.Domain)
	token := m.issueTokenLocked(body.Email)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"accessToken": token, "user": user}})
}

func (m *MockAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m.mu.Lock()
	user, ok := m.users[body.Email]
	if !ok || user.password != body.Password {
		m.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := m.issueTokenLocked(body.Email)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": token, "user": user}})
}

func (m *MockAPI) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeError(w, http.StatusBadRequest, "email should not be empty")
		return
	}

	m.mu.Lock()
	m.resetEmail = body.Email
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"message": "OTP sent to email"}})
}

func (m *MockAPI) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.OTP != ValidOTP {
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	m.mu.Lock()
	if user, ok := m.users[m.resetEmail]; ok {
		user.password = body.NewPassword
	}
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"message": "Password reset successfully"}})
}

func (m *MockAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	user := m.currentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	m.mu.Lock()
	snapshot := *user
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

func (m *MockAPI) addUserLocked(email, password, domain string) *mockUser {
	now := time.Now().UTC().Format(time.RFC3339)
	user := &mockUser{
		ID:        uuid.NewString(),
		Email:     email,
		Domain:    domain,
		APIKey:    "key-" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		password:  password,
	}
	m.users[email] = user
	return user
}

func (m *MockAPI) issueTokenLocked(email string) string {
	token := "tok-" + uuid.NewString()
	m.tokens[token] = email
	return token
}

func (m *MockAPI) currentUser(r *http.Request) *mockUser {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.tokens[token]
	if !ok {
		return nil
	}
	return m.users[email]
}

func positiveQueryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message, "statusCode": status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
