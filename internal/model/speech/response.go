package speech

import "time"

// ASRResponse 识别结果。Language 为实际发给后端的语言码。
type ASRResponse struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Language   string    `json:"language,omitempty"`
	Provider   Provider  `json:"provider"`
	Confidence float64   `json:"confidence"`
	Duration   int64     `json:"duration"` // milliseconds
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TTSResponse 合成结果。Voice/Engine 为别名解析与候选回退之后最终使用的值。
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Format    string    `json:"format"`
	Voice     string    `json:"voice,omitempty"`
	Engine    string    `json:"engine,omitempty"`
	Provider  Provider  `json:"provider"`
	Duration  int64     `json:"duration"` // milliseconds
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
