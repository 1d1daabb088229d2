//go:build integration

package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// authAPI is a minimal auth backend. Renewals block on gate when it is non-nil.
type authAPI struct {
	srv      *httptest.Server
	signer   *jwt.Signer
	gate     chan struct{}
	renewals atomic.Int32
}

func newAuthAPI(t *testing.T, gate chan struct{}) *authAPI {
	t.Helper()
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("integration-secret-integration-se"),
	})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	a := &authAPI{signer: signer, gate: gate}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.renewals.Add(1)
		if a.gate != nil {
			select {
			case <-a.gate:
			case <-r.Context().Done():
				return
			}
		}
		tok, _ := a.signer.Issue("u-1", "ada@example.com", "ARTIST")
		writeEnvelope(w, http.StatusOK, map[string]any{"accessToken": tok})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, nil)
	})
	a.srv = httptest.NewServer(mux)
	t.Cleanup(a.srv.Close)
	return a
}

func (a *authAPI) issue(t *testing.T) string {
	t.Helper()
	tok, err := a.signer.Issue("u-1", "ada@example.com", "ARTIST")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func writeEnvelope(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]any{"status": code, "message": http.StatusText(code)}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}
