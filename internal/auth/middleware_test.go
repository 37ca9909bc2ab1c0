package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scholarships", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_StudentForbiddenScholarshipCreate(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "identity-1", RoleStudent)
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scholarships", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_FinanceForbiddenScholarshipSuspend(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "identity-2", RoleOperatorFinance)
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scholarships/b-1/suspend", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_RectorAllowedScholarshipSuspend(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "identity-3", RoleRecteur)
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	var gotSubject string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scholarships/b-1/suspend", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotSubject != "identity-3" {
		t.Fatalf("subject = %q", gotSubject)
	}
}

func TestScopeCoversUnit(t *testing.T) {
	scope := NewScope("teacher-1", RoleTeacher).WithTeachingUnits("ue-math-101")
	if !scope.CoversUnit("UE-MATH-101") {
		t.Fatal("expected unit in scope, case-insensitively")
	}
	if scope.CoversUnit("UE-PHYS-102") {
		t.Fatal("unit outside scope must be rejected")
	}
	empty := NewScope("teacher-2", RoleTeacher)
	if empty.CoversUnit("UE-MATH-101") {
		t.Fatal("teacher without unit scope must be rejected")
	}
	admin := NewScope("admin-1", RoleAdminSI)
	if !admin.CoversUnit("UE-MATH-101") {
		t.Fatal("admin scope covers all units")
	}
}

func mustToken(t *testing.T, secret []byte, subject string, role Role) string {
	t.Helper()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
