package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey    = "response_meta"
	responseStartedKey = "response_started"
	storeHitKey        = "store_hit"
	processingTimeKey  = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request
// context and records when the request started.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartedKey, time.Now())
		ensureMeta(c)
		c.Next()
	}
}

// SetStoreHit records whether the response was served from a stored summary.
func SetStoreHit(c *gin.Context, hit bool) {
	ensureMeta(c)[storeHitKey] = hit
}

// SetMeta stores an arbitrary metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	ensureMeta(c)[key] = value
}

// ExtractMeta returns a copy of the metadata stored on the context, stamped
// with the processing time so far. Call it right before writing the body.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	out := make(map[string]interface{})
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			for k, v := range typed {
				out[k] = v
			}
		}
	}
	if started, ok := c.Get(responseStartedKey); ok {
		if at, ok := started.(time.Time); ok {
			out[processingTimeKey] = time.Since(at).Milliseconds()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
