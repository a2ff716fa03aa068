package oauth

import "context"

// OOBExchanger performs the final code-for-token exchange for the
// out-of-band paste variant (iFlow): the user copies a code shown on the
// provider's page and pastes it back into BYOKEY.
type OOBExchanger interface {
	AuthorizationURL() string
	Exchange(ctx context.Context, pastedCode string) (Result, error)
}

// OOBPasteFlow is the authorization-code with out-of-band paste variant.
// Unlike the loopback flow there is no redirect to capture; the
// caller (CLI/TUI) collects the pasted code and passes it to Finish.
type OOBPasteFlow struct {
	Provider  string
	Exchanger OOBExchanger

	pasted chan string
}

func NewOOBPasteFlow(provider string, exchanger OOBExchanger) *OOBPasteFlow {
	return &OOBPasteFlow{Provider: provider, Exchanger: exchanger, pasted: make(chan string, 1)}
}

func (f *OOBPasteFlow) Start(ctx context.Context) (StartInfo, error) {
	return StartInfo{VerificationURL: f.Exchanger.AuthorizationURL()}, nil
}

// SubmitCode delivers the user-pasted code to a pending Finish call. It is
// the caller's (CLI/TUI) responsibility to collect the paste and call this
// exactly once per login attempt.
func (f *OOBPasteFlow) SubmitCode(code string) {
	f.pasted <- code
}

func (f *OOBPasteFlow) Finish(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, NewAuthenticationError(UserCanceled, f.Provider, ctx.Err())
	case code := <-f.pasted:
		return f.Exchanger.Exchange(ctx, code)
	}
}
