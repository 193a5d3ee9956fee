package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
)

func TestValidatePageURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "https://example.com/", wantErr: false},
		{raw: "http://127.0.0.1:8080/page?x=1", wantErr: false},
		{raw: "", wantErr: true},
		{raw: "example.com", wantErr: true},
		{raw: "ftp://example.com/", wantErr: true},
		{raw: "javascript:alert(1)", wantErr: true},
		{raw: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := ValidatePageURL(tt.raw)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", fmt.Errorf("scan: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"circuit open", fmt.Errorf("fetch: %w", resilience.ErrCircuitOpen), http.StatusServiceUnavailable},
		{"half-open saturated", resilience.ErrTooManyRequests, http.StatusServiceUnavailable},
		{"upstream status", fmt.Errorf("fetch: %w: 404", httpclient.ErrStatus), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
