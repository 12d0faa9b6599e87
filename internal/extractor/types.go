package extractor

// Quality は選択可能な画質です。
type Quality struct {
	Quality  string `json:"quality"`
	Height   int    `json:"height,omitempty"`
	Filesize int64  `json:"filesize"`
	FormatID string `json:"format_id"`
	Params   string `json:"params,omitempty"`
}

// Entry はプレイリストの1件です。
type Entry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	URL         string  `json:"url"`
}

// Result はメタデータの抽出結果です。単一アイテムとプレイリストのどちらかを表します。
type Result struct {
	IsPlaylist  bool   `json:"is_playlist"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	WebpageURL  string `json:"webpage_url,omitempty"`
	Extractor   string `json:"extractor,omitempty"`
	AuthBrowser string `json:"auth_browser"`

	// 単一アイテムのみ
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
	Description string    `json:"description,omitempty"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Qualities   []Quality `json:"qualities,omitempty"`

	// プレイリストのみ
	Entries []Entry `json:"entries,omitempty"`
}

// rawInfo は yt-dlp の --dump-single-json 出力のうち使う項目です。
type rawInfo struct {
	Type        string      `json:"_type"`
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Thumbnail   string      `json:"thumbnail"`
	Duration    float64     `json:"duration"`
	Description string      `json:"description"`
	WebpageURL  string      `json:"webpage_url"`
	Extractor   string      `json:"extractor"`
	Formats     []rawFormat `json:"formats"`
	Entries     []rawEntry  `json:"entries"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	TBR            float64 `json:"tbr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	URL            string  `json:"url"`
}

type rawEntry struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Duration    float64        `json:"duration"`
	Thumbnails  []rawThumbnail `json:"thumbnails"`
	URL         string         `json:"url"`
	WebpageURL  string         `json:"webpage_url"`
}

type rawThumbnail struct {
	URL string `json:"url"`
}
