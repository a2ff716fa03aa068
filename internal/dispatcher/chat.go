package dispatcher

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/executor"
	log "github.com/sirupsen/logrus"

	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

// handleChat implements the full request pipeline for one fixed incoming
// dialect: parse just enough of the body to resolve routing, acquire a
// credential, translate, execute with one refresh-and-retry on
// CredentialExpired, and either stream or return the translated response.
func (d *Dispatcher) handleChat(dialectIn translator.Dialect) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := d.requestIDFrom(c)

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeError(c, byokeyerr.InvalidRequest("reading request body: %v", err))
			return
		}

		model := gjson.GetBytes(body, "model").String()
		if model == "" {
			writeError(c, byokeyerr.InvalidRequest("request is missing \"model\""))
			return
		}
		streamRequested := gjson.GetBytes(body, "stream").Bool()

		reg := d.registry.Load()
		if reg == nil {
			writeError(c, byokeyerr.Internal(requestID, fmt.Errorf("model registry not ready")))
			return
		}
		providerID, canonicalModel, ok := reg.Resolve(model)
		if !ok {
			writeError(c, byokeyerr.ModelUnknown(model))
			return
		}

		dialectOut, ok := nativeDialect[providerID]
		if !ok {
			writeError(c, byokeyerr.Internal(requestID, fmt.Errorf("no native dialect registered for provider %q", providerID)))
			return
		}

		translated, err := d.dialects.TranslateRequest(dialectIn, dialectOut, body)
		if err != nil {
			writeError(c, byokeyerr.InvalidRequest("translating request: %v", err))
			return
		}

		providerCfg := d.cfg.Load().Providers[string(providerID)]

		log.WithFields(d.logFields(providerID, "", requestID)).WithField("model", canonicalModel).Info("dispatching chat request")

		d.dispatchTranslated(c, providerID, canonicalModel, providerCfg, dialectIn, dialectOut, translated, streamRequested)
	}
}

// dispatchTranslated runs Acquire → Execute (with one refresh-retry on
// CredentialExpired) → respond, shared by every inbound route once the
// request body has been translated into the upstream's native dialect.
func (d *Dispatcher) dispatchTranslated(
	c *gin.Context,
	providerID store.ProviderID,
	canonicalModel string,
	providerCfg config.ProviderConfig,
	dialectIn, dialectOut translator.Dialect,
	translatedBody []byte,
	streamRequested bool,
) {
	ctx := c.Request.Context()

	exec, ok := d.executors[providerID]
	if !ok {
		writeError(c, byokeyerr.Internal(d.requestIDFrom(c), fmt.Errorf("no executor registered for provider %q", providerID)))
		return
	}

	account, err := d.auth.Acquire(ctx, providerID, d.selectorFor(providerCfg))
	if err != nil {
		writeError(c, err)
		return
	}

	req := executor.Request{Model: canonicalModel, Dialect: dialectOut, Body: translatedBody, Streaming: streamRequested}

	result, err := exec.Execute(ctx, req, account.Credential, providerCfg, d.client)
	if _, expired := err.(*executor.CredentialExpired); expired {
		refreshedAccount, rerr := d.auth.ForceRefresh(ctx, providerID, account.AccountID)
		if rerr != nil {
			d.recordFailure(providerID, account.AccountID, rerr)
			writeError(c, rerr)
			return
		}
		account = refreshedAccount
		result, err = exec.Execute(ctx, req, account.Credential, providerCfg, d.client)
	}
	if err != nil {
		d.recordFailure(providerID, account.AccountID, err)
		writeError(c, err)
		return
	}

	promptTokens := 0
	if d.estimator != nil {
		if n, estErr := d.estimator.CountText(string(translatedBody)); estErr == nil {
			promptTokens = n
		}
	}
	d.recordSuccess(providerID, account.AccountID, promptTokens)

	if result.Stream != nil {
		d.pipeStream(c, result.Stream, dialectOut, dialectIn)
		return
	}

	outBody, err := d.dialects.TranslateResponse(dialectOut, dialectIn, result.Body)
	if err != nil {
		writeError(c, byokeyerr.Internal(d.requestIDFrom(c), err))
		return
	}
	writeJSON(c, http.StatusOK, outBody)
}
