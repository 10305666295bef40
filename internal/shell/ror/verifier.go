// Package ror checks that a Research Organization Registry ID resolves to a
// registered organization.
package ror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrNotRegistered is returned when the ROR ID does not resolve.
var ErrNotRegistered = errors.New("institution does not exist in the ROR registry")

// Verifier resolves ROR IDs with a HEAD request, following redirects.
type Verifier struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewVerifier creates a Verifier. A zero timeout defaults to 5 seconds.
func NewVerifier(timeout time.Duration, logger *slog.Logger) *Verifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "ror_verifier"),
	}
}

// Check returns nil when rorID answers 200 OK. An empty rorID is not checked.
func (v *Verifier) Check(ctx context.Context, rorID string) error {
	if rorID == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rorID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resolve ror id %s: %w", rorID, err)
	}
	resp.Body.Close()

	v.logger.Debug("resolved ror id", "ror_id", rorID, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s (status %d)", ErrNotRegistered, rorID, resp.StatusCode)
	}
	return nil
}
