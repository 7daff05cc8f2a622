package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	verifier, err := NewVerifier(Options{Secret: "test-secret", Issuer: "trustlock-test"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier
}

func TestMintAndVerify(t *testing.T) {
	verifier := newTestVerifier(t)
	token, err := verifier.Mint("wallet-1", RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "wallet-1" || claims.Role != RoleClient {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	verifier := newTestVerifier(t)
	token, err := verifier.Mint("wallet-1", RoleClient, -time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier := newTestVerifier(t)
	other, err := NewVerifier(Options{Secret: "other-secret"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := other.Mint("wallet-1", RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	verifier := newTestVerifier(t)
	if _, err := verifier.Mint("wallet-1", Role("admin"), time.Minute); err == nil {
		t.Fatal("expected mint rejection for unknown role")
	}
}

func TestMiddlewareAndRoleGate(t *testing.T) {
	verifier := newTestVerifier(t)
	handler := verifier.Middleware(RequireRole(RoleArbiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := FromContext(r.Context())
		if err != nil {
			t.Fatalf("claims: %v", err)
		}
		if claims.Role != RoleArbiter {
			t.Fatalf("unexpected role: %s", claims.Role)
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}

	// Wrong role.
	token, err := verifier.Mint("wallet-1", RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: got %d", rec.Code)
	}

	// Right role.
	token, err = verifier.Mint("arbiter-1", RoleArbiter, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("arbiter: got %d", rec.Code)
	}
}
