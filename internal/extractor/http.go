package extractor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-forge/internal/apperror"
)

type infoRequest struct {
	URL string `json:"url"`
}

// InfoHandler は POST /api/video-info を処理します。
func InfoHandler(g *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req infoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    apperror.CodeInvalidInput,
				"message": "リクエストの形式が不正です。",
			})
			return
		}

		result, err := g.Extract(c.Request.Context(), req.URL)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
