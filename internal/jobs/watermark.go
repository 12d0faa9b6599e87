package jobs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// WatermarkRequest は透かしの指定です。
// 未指定または false なら透かしなし、true ならフラグのみ、文字列なら埋め込み画像です。
type WatermarkRequest struct {
	Requested bool
	Payload   string
}

func (w *WatermarkRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = WatermarkRequest{}
		return nil
	}

	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		*w = WatermarkRequest{Requested: flag}
		return nil
	}

	var payload string
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("watermark must be a boolean or a data URL")
	}
	payload = strings.TrimSpace(payload)
	*w = WatermarkRequest{Requested: payload != "", Payload: payload}
	return nil
}

func (w WatermarkRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Requested)
}

var dataURLPattern = regexp.MustCompile(`^data:([A-Za-z0-9.+/-]+);base64,(.+)$`)

var errNoWatermarkImage = errors.New("watermark has no embedded image")

// decodeWatermark は data URL を画像バイト列と拡張子に変換します。
// 画像として判定できない内容は拒否します。
func decodeWatermark(payload string) ([]byte, string, error) {
	if payload == "" {
		return nil, "", errNoWatermarkImage
	}
	m := dataURLPattern.FindStringSubmatch(payload)
	if len(m) != 3 {
		return nil, "", fmt.Errorf("watermark is not a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode watermark: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("watermark image is empty")
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, "", fmt.Errorf("watermark content is %s, not an image", detected.String())
	}
	ext := detected.Extension()
	if ext == "" {
		ext = ".png"
	}
	return data, ext, nil
}
