// Package apperror は API 全体で共有するエラー型とレスポンス変換を提供します。
package apperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// エラーコード一覧
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeAcquisitionFailed   = "ACQUISITION_FAILED"
	CodeCompositingDegraded = "COMPOSITING_DEGRADED"
	CodeJobNotFound         = "JOB_NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error は利用者に返すコードとメッセージを持つエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New は Error を作成します。
func New(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// InvalidInput は入力不正エラーを作成します。
func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message, nil)
}

// NotFound はジョブが存在しない場合のエラーを作成します。
func NotFound(message string) *Error {
	return New(CodeJobNotFound, message, nil)
}

// HasCode は err が指定コードの Error を含むかどうかを返します。
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Respond は err を JSON レスポンスに変換して書き込みます。
func Respond(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		payload := gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		}
		if apiErr.Code == CodeExtractionFailed && apiErr.Err != nil {
			payload["details"] = apiErr.Err.Error()
		}
		c.JSON(statusFor(apiErr.Code), payload)
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    CodeInternal,
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func statusFor(code string) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeJobNotFound:
		return http.StatusNotFound
	case CodeExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
