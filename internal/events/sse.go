package events

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StreamHandler は GET /api/events のハンドラーを返します。
// Server-Sent Events で購読開始以降のイベントを流します。
func StreamHandler(b *Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, unsubscribe := b.Subscribe()
		defer unsubscribe()

		c.Header("Cache-Control", "no-store")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(string(ev.Type), ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
