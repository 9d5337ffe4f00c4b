// Package auth verifies bearer tokens on the data endpoints. Verification is
// an external concern; the rest of the service only sees the Verifier
// interface and the resolved User.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// User is the identity attached to an authenticated request.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Verifier checks an ID token and resolves the calling user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// GoogleVerifier validates Google-issued ID tokens against the tokeninfo
// endpoint. Good enough for a single-tenant deployment; swap in a local JWT
// validator if per-request latency to Google becomes a problem.
type GoogleVerifier struct {
	Client *http.Client
}

var _ Verifier = (*GoogleVerifier)(nil)

type tokenInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Error         string `json:"error_description"`
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*User, error) {
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := "https://oauth2.googleapis.com/tokeninfo?id_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("AUTH_REQ_CREATE_ERROR: %v", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AUTH_TOKENINFO_ERROR: %v", err)
	}
	defer res.Body.Close()

	var info tokenInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("AUTH_DECODE_ERROR: %v", err)
	}

	if res.StatusCode != 200 || info.Sub == "" {
		return nil, fmt.Errorf("AUTH_INVALID_TOKEN: %s", info.Error)
	}

	return &User{UID: info.Sub, Email: info.Email}, nil
}

// FromRequest extracts and verifies the Bearer token on a request.
func FromRequest(r *http.Request, v Verifier) (*User, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, fmt.Errorf("AUTH_MISSING_BEARER: Authorization header required")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return v.Verify(r.Context(), token)
}
