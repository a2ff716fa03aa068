package dispatcher

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/byokey/byokey/internal/byokeyerr"
)

// errorBody is the OpenAI-compatible error envelope, so existing
// OpenAI/Anthropic SDK clients parse BYOKEY's errors the same way they parse
// the real upstream's.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func errorType(kind byokeyerr.Kind) string {
	switch kind {
	case byokeyerr.KindInvalidRequest:
		return "invalid_request_error"
	case byokeyerr.KindModelUnknown:
		return "invalid_request_error"
	case byokeyerr.KindNotAuthenticated:
		return "authentication_error"
	case byokeyerr.KindTransientAuthError, byokeyerr.KindUpstreamError, byokeyerr.KindUpstreamTimeout:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// writeError renders err as the JSON error body and HTTP status 
// assigns it, attaching any headers (Retry-After) the error carries.
func writeError(c *gin.Context, err error) {
	be, ok := byokeyerr.As(err)
	if !ok {
		be = byokeyerr.Internal(c.GetString(requestIDContextKey), err)
	}

	for key, values := range be.Headers() {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}

	body, marshalErr := json.Marshal(errorBody{Error: errorDetail{
		Message: be.Error(),
		Type:    errorType(be.Kind),
		Code:    be.Kind.String(),
	}})
	if marshalErr != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	writeJSON(c, be.StatusCode(), body)
}
