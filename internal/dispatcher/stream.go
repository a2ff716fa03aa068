package dispatcher

import (
	"bufio"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/byokey/byokey/internal/translator"
)

// sseBufferCap is the per-event buffer cap : a single SSE frame
// larger than this is a protocol violation by the upstream, not something
// the dispatcher should buffer unboundedly for.
const sseBufferCap = 64 * 1024

// pipeStream drains an upstream SSE body frame-by-frame, translating each
// frame from dialectOut's wire shape to dialectIn's and writing it straight
// to the client as it arrives (streaming must not buffer the whole
// response). It stops as soon as the client disconnects, the upstream body
// closes, or a translation error occurs — a translation error mid-stream
// becomes an in-stream DeltaError event rather than an HTTP status change,
// since headers are already flushed.
func (d *Dispatcher) pipeStream(c *gin.Context, upstream io.ReadCloser, dialectOut, dialectIn translator.Dialect) {
	defer upstream.Close()

	c.Status(http.StatusOK)
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeaderNow()

	flusher, canFlush := c.Writer.(http.Flusher)

	decoder := d.dialects.NewDecoder(dialectOut)
	encoder := d.dialects.NewEncoder(dialectIn)

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 4096), sseBufferCap)
	scanner.Split(translator.SplitSSEFrames)

	ctx := c.Request.Context()
	emit := func(frame []byte) {
		if _, err := c.Writer.Write(frame); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		if err := d.dialects.TranslateStream(dialectOut, dialectIn, frame, decoder, encoder, emit); err != nil {
			log.WithFields(d.logFields("", "", d.requestIDFrom(c))).WithError(err).Warn("stream translation failed mid-response")
			emit(encoder.Encode(translator.StreamDelta{Kind: translator.DeltaError, ErrorMessage: err.Error()}))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithFields(d.logFields("", "", d.requestIDFrom(c))).WithError(err).Warn("upstream stream read failed")
	}
}
