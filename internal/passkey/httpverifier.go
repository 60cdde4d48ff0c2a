package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const verifierTimeout = 10 * time.Second

// HTTPVerifier talks to an external WebAuthn verifier service over JSON/HTTP.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier builds a verifier client for the given base URL.
func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: verifierTimeout},
	}
}

// GenerateRegistrationOptions requests registration ceremony parameters.
func (v *HTTPVerifier) GenerateRegistrationOptions(ctx context.Context, req RegistrationOptionsRequest) (CeremonyOptions, error) {
	var out CeremonyOptions
	err := v.post(ctx, "/registration/options", req, &out)
	return out, err
}

// VerifyRegistrationResponse verifies an attestation response.
func (v *HTTPVerifier) VerifyRegistrationResponse(ctx context.Context, req VerifyRegistrationRequest) (RegistrationResult, error) {
	var out RegistrationResult
	err := v.post(ctx, "/registration/verify", req, &out)
	return out, err
}

// GenerateAuthenticationOptions requests authentication ceremony parameters.
func (v *HTTPVerifier) GenerateAuthenticationOptions(ctx context.Context, req AuthenticationOptionsRequest) (CeremonyOptions, error) {
	var out CeremonyOptions
	err := v.post(ctx, "/authentication/options", req, &out)
	return out, err
}

// VerifyAuthenticationResponse verifies an assertion response.
func (v *HTTPVerifier) VerifyAuthenticationResponse(ctx context.Context, req VerifyAuthenticationRequest) (AuthenticationResult, error) {
	var out AuthenticationResult
	err := v.post(ctx, "/authentication/verify", req, &out)
	return out, err
}

func (v *HTTPVerifier) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode verifier request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, verifierTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build verifier request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call verifier %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("verifier %s returned %d: %s", path, resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode verifier response: %w", err)
	}
	return nil
}
