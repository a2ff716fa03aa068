package oauth

import (
	"context"
	"time"
)

// HybridDeviceCodeProvider is DeviceCodeProvider plus a PKCE verifier: the
// device code itself carries a PKCE challenge, and the token exchange must
// present the matching verifier alongside it (Qwen).
type HybridDeviceCodeProvider interface {
	RequestDeviceCode(ctx context.Context, codeChallenge string) (DeviceCodeResponse, error)
	PollToken(ctx context.Context, deviceCode, codeVerifier string) (result Result, ok bool, slowDown bool, err error)
}

// DeviceCodePKCEFlow is the device-code + PKCE hybrid variant.
type DeviceCodePKCEFlow struct {
	Provider string
	Backend  HybridDeviceCodeProvider

	dc       DeviceCodeResponse
	verifier string
}

func NewDeviceCodePKCEFlow(provider string, backend HybridDeviceCodeProvider) *DeviceCodePKCEFlow {
	return &DeviceCodePKCEFlow{Provider: provider, Backend: backend}
}

func (f *DeviceCodePKCEFlow) Start(ctx context.Context) (StartInfo, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return StartInfo{}, NewAuthenticationError(MalformedResponse, f.Provider, err)
	}
	f.verifier = verifier

	dc, err := f.Backend.RequestDeviceCode(ctx, ChallengeFromVerifier(verifier))
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

func (f *DeviceCodePKCEFlow) Finish(ctx context.Context) (Result, error) {
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

		result, ok, slowDown, err := f.Backend.PollToken(ctx, f.dc.DeviceCode, f.verifier)
		if err != nil {
			return Result{}, err
		}
		if slowDown {
			interval += 5 * time.Second
			continue
		}
		if ok {
			return result, nil
		}
	}
}
