package httpcall_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gatekeep/internal/core/httpcall"
	"gatekeep/internal/platform/testkit"
)

func TestStaticTokenSource(t *testing.T) {
	tok, err := httpcall.NewStatic("fixed").Token(context.Background(), "https://anywhere")
	testkit.MustNoErr(t, err)
	if tok != "fixed" {
		t.Fatalf("token = %q, want fixed", tok)
	}
}

func TestMetadataTokenSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Metadata-Flavor"); got != "Google" {
			t.Errorf("flavor header = %q", got)
		}
		if got := r.URL.Query().Get("audience"); got != "https://secondary.example" {
			t.Errorf("audience = %q", got)
		}
		_, _ = w.Write([]byte("jwt-token\n"))
	}))
	defer srv.Close()

	src := httpcall.NewMetadata(srv.URL)
	tok, err := src.Token(context.Background(), "https://secondary.example")
	testkit.MustNoErr(t, err)
	if tok != "jwt-token" {
		t.Fatalf("token = %q, want trimmed jwt-token", tok)
	}
}

func TestMetadataTokenSource_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := httpcall.NewMetadata(srv.URL).Token(context.Background(), "aud")
	testkit.MustErr(t, err)
	testkit.MustContain(t, err.Error(), "404")
}
