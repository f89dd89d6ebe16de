package httpcall

import (
	"context"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	perr "gatekeep/internal/platform/errors"
)

// TokenSource mints a bearer token for one outbound call. Tokens are minted
// per attempt and never cached across retries; audiences may require freshly
// issued identity tokens on every call
type TokenSource interface {
	Token(ctx context.Context, audience string) (string, error)
}

// StaticTokenSource returns a fixed token (local dev and tests)
type StaticTokenSource struct{ token string }

// NewStatic constructs a StaticTokenSource
func NewStatic(token string) *StaticTokenSource { return &StaticTokenSource{token: token} }

// Token returns the fixed token
func (s *StaticTokenSource) Token(context.Context, string) (string, error) {
	return s.token, nil
}

// MetadataTokenSource fetches identity tokens from the instance metadata
// endpoint, the issuing path available inside the managed runtime
type MetadataTokenSource struct {
	base   string
	client *stdhttp.Client
}

// DefaultMetadataBase is the conventional metadata host
const DefaultMetadataBase = "http://metadata.google.internal"

// NewMetadata constructs a MetadataTokenSource; base falls back to the default host
func NewMetadata(base string) *MetadataTokenSource {
	if base == "" {
		base = DefaultMetadataBase
	}
	return &MetadataTokenSource{
		base:   strings.TrimRight(base, "/"),
		client: &stdhttp.Client{Timeout: 5 * time.Second},
	}
}

// Token fetches an identity token scoped to the audience URL
func (m *MetadataTokenSource) Token(ctx context.Context, audience string) (string, error) {
	u := fmt.Sprintf(
		"%s/computeMetadata/v1/instance/service-accounts/default/identity?audience=%s",
		m.base, url.QueryEscape(audience),
	)
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, u, nil)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "build metadata request")
	}
	req.Header.Set("Metadata-Flavor", "Google")

	res, err := m.client.Do(req)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "fetch identity token")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != stdhttp.StatusOK {
		return "", perr.Unavailablef("metadata endpoint returned %d", res.StatusCode)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "read identity token")
	}
	return strings.TrimSpace(string(b)), nil
}
