package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"community/api/internal/auth"
	"community/api/internal/store"
)

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func issueTestToken(t *testing.T, name, role string) string {
	t.Helper()
	claims := auth.NewClaims("usr_test", name, role, "jti_test", time.Hour)
	token, err := auth.IssueToken([]byte(testConfig().JWTSecret), claims)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func TestSignUpSignInSessionFlow(t *testing.T) {
	server := NewHTTPServer(newTestService(store.NewMemoryStore()), "*")
	handler := server.Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", `{"email":"ana@example.com","password":"hunter22!","displayName":"  Ana  "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeMap(t, rr)
	if created["displayName"] != "Ana" || created["role"] != "Member" {
		t.Fatalf("unexpected signup payload %v", created)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", `{"email":"ana@example.com","password":"hunter22!","displayName":"Ana"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "EMAIL_EXISTS" {
		t.Fatalf("expected EMAIL_EXISTS, got %v", code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"ana@example.com","password":"wrong-password"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin: expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"ana@example.com","password":"hunter22!"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	signedIn := decodeMap(t, rr)
	token, _ := signedIn["accessToken"].(string)
	if token == "" {
		t.Fatalf("expected accessToken in %v", signedIn)
	}
	if signedIn["userName"] != "Ana" || signedIn["userId"] != created["userId"] {
		t.Fatalf("unexpected signin payload %v", signedIn)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/session", token, "")
	session := decodeMap(t, rr)
	if session["authenticated"] != true || session["userName"] != "Ana" || session["role"] != "Member" {
		t.Fatalf("unexpected session payload %v", session)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/session", "", "")
	if session := decodeMap(t, rr); session["authenticated"] != false {
		t.Fatalf("expected anonymous session, got %v", session)
	}
}

func TestSignUpRejectsReservedRole(t *testing.T) {
	server := NewHTTPServer(newTestService(store.NewMemoryStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/signup", "", `{"email":"mo@example.com","password":"hunter22!","displayName":"Mo","role":"Moderator"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	details, _ := payload["details"].(map[string]any)
	if payload["code"] != "INVALID_DOCUMENT" || details["field"] != "role" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestSignUpRejectsInvalidBody(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/signup", "", `{"email":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "INVALID_BODY" {
		t.Fatalf("expected INVALID_BODY, got %v", code)
	}
}

func TestBearerSessionFillsPostAuthor(t *testing.T) {
	server := NewHTTPServer(newTestService(store.NewMemoryStore()), "*")
	token := issueTestToken(t, "Ana", "Member")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/posts", token, `{"content":"Hi","category":"frontend"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var post store.Post
	if err := json.Unmarshal(rr.Body.Bytes(), &post); err != nil {
		t.Fatalf("parse post: %v", err)
	}
	if post.Author != "Ana" || post.Role != "Member" {
		t.Fatalf("expected session author and role, got %+v", post)
	}
}

func TestExplicitAuthorWinsOverSession(t *testing.T) {
	server := NewHTTPServer(newTestService(store.NewMemoryStore()), "*")
	token := issueTestToken(t, "Ana", "Member")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/posts", token, `{"author":"Ana (TA)","role":"Teaching Assistant","content":"Hi","category":"frontend"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var post store.Post
	if err := json.Unmarshal(rr.Body.Bytes(), &post); err != nil {
		t.Fatalf("parse post: %v", err)
	}
	if post.Author != "Ana (TA)" || post.Role != "Teaching Assistant" {
		t.Fatalf("expected explicit author and role, got %+v", post)
	}
}

func TestInvalidBearerTokenIsRejected(t *testing.T) {
	server := NewHTTPServer(newTestService(store.NewMemoryStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/channels/frontend/posts", "not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", code)
	}
}
