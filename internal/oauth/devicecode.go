package oauth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// DeviceCodeResponse is the provider's device-authorization response, the
// standard RFC 8628 device-code JSON shape.
type DeviceCodeResponse struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	IntervalSeconds int
}

// DeviceCodeProvider performs the two device-flow HTTP calls; providers with
// a secondary token-swap step (Copilot's GitHub token -> Copilot endpoint
// token) implement that swap inside PollToken itself.
type DeviceCodeProvider interface {
	RequestDeviceCode(ctx context.Context) (DeviceCodeResponse, error)
	// PollToken performs one poll attempt. ok=false with a nil error means
	// "authorization_pending", keep polling. slowDown=true means the server
	// asked for a larger interval (RFC 8628 slow_down).
	PollToken(ctx context.Context, deviceCode string) (result Result, ok bool, slowDown bool, err error)
}

// DeviceCodeFlow is the plain device-code variant, used by Copilot, Kiro, Kimi.
type DeviceCodeFlow struct {
	Provider string
	Backend  DeviceCodeProvider

	dc DeviceCodeResponse
}

func NewDeviceCodeFlow(provider string, backend DeviceCodeProvider) *DeviceCodeFlow {
	return &DeviceCodeFlow{Provider: provider, Backend: backend}
}

func (f *DeviceCodeFlow) Start(ctx context.Context) (StartInfo, error) {
	dc, err := f.Backend.RequestDeviceCode(ctx)
	if err != nil {
		return StartInfo{}, NewAuthenticationError(NetworkError, f.Provider, err)
	}
	if dc.IntervalSeconds <= 0 {
		dc.IntervalSeconds = 5
	}
	f.dc = dc
	return StartInfo{
		VerificationURL: dc.VerificationURI,
		UserCode:        dc.UserCode,
		ExpiresAt:       time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second),
	}, nil
}

// Finish polls at the server-supplied interval, honoring slow_down backoff
// (+5s) until success, access_denied/expired_token (surfaced
// as UpstreamRejected/Timeout), or context cancellation (UserCanceled).
func (f *DeviceCodeFlow) Finish(ctx context.Context) (Result, error) {
	interval := time.Duration(f.dc.IntervalSeconds) * time.Second
	deadline := time.Now().Add(time.Duration(f.dc.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return Result{}, NewAuthenticationError(Timeout, f.Provider, nil)
		}
		select {
		case <-ctx.Done():
			return Result{}, NewAuthenticationError(UserCanceled, f.Provider, ctx.Err())
		case <-time.After(interval):
		}

		result, ok, slowDown, err := f.Backend.PollToken(ctx, f.dc.DeviceCode)
		if err != nil {
			var authErr *AuthenticationError
			if errors.As(err, &authErr) {
				return Result{}, authErr
			}
			return Result{}, NewAuthenticationError(NetworkError, f.Provider, err)
		}
		if slowDown {
			interval += 5 * time.Second
			log.Debugf("oauth(%s): slow_down received, interval now %s", f.Provider, interval)
			continue
		}
		if ok {
			return result, nil
		}
	}
}
