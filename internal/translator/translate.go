package translator

// RequestParser and RequestRenderer let translate.go call into the three
// dialect packages without importing them directly (openai/anthropic/gemini
// all import this package for the canonical types, so this package cannot
// import them back without a cycle). internal/translator/build wires the
// concrete functions into a Registry.
type RequestParser func(raw []byte) (Request, error)
type RequestRenderer func(Request) []byte
type ResponseParser func(raw []byte) (Response, error)
type ResponseRenderer func(Response) []byte

// Dialects bundles one dialect's parse/render functions. internal/executor
// and internal/dispatcher hold a Dialects per Dialect, built from the
// concrete openai/anthropic/gemini package functions.
type Dialects struct {
	ParseRequest    RequestParser
	RenderRequest   RequestRenderer
	ParseResponse   ResponseParser
	RenderResponse  ResponseRenderer
	ParseStream     StreamParser
	RenderStreamEvt StreamRenderer
}

// Registry is a Dialect-keyed set of Dialects, assembled once at startup
// from the concrete dialect packages.
type Registry map[Dialect]Dialects

// TranslateRequest converts a request body from one dialect to another,
// applying adjacent-same-role merging (, property #7) and the
// thinking-strip rule: a forced tool_choice strips thinking blocks (the
// provider isn't going to emit reasoning when it must call a tool), and so
// does a target dialect whose wire format has no way to carry one at all.
func (r Registry) TranslateRequest(from, to Dialect, raw []byte) ([]byte, error) {
	req, err := r[from].ParseRequest(raw)
	if err != nil {
		return nil, err
	}
	req.Messages = MergeAdjacentSameRole(req.Messages)
	forcedToolChoice := req.ToolChoice.Mode != "auto" && req.ToolChoice.Mode != ""
	if forcedToolChoice || !to.CarriesReasoning() {
		req.Messages = StripThinking(req.Messages)
	}
	return r[to].RenderRequest(req), nil
}

// TranslateResponse converts a non-streaming response body from one dialect
// to another.
func (r Registry) TranslateResponse(from, to Dialect, raw []byte) ([]byte, error) {
	resp, err := r[from].ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	return r[to].RenderResponse(resp), nil
}
