package turn

import "github.com/zhouzirui/z-shelter/backend/internal/model/chat"

// Outcome 标记一轮对话的结果类型
type Outcome string

const (
	OutcomeConfirmation Outcome = "confirmation" // 数据加载确认，未调用生成
	OutcomeReply        Outcome = "reply"        // 模型生成的回复
	OutcomeRejected     Outcome = "rejected"     // 输入为空，未调用任何外部服务
)

// Result 一轮对话的产出。非 rejected 时 Audio 与 NoAudioReason 二选一。
type Result struct {
	SessionID     string         `json:"sessionId"`
	Outcome       Outcome        `json:"outcome"`
	UserText      string         `json:"userText,omitempty"`
	DisplayText   string         `json:"displayText,omitempty"`
	SpeakText     string         `json:"speakText,omitempty"`
	Audio         []byte         `json:"-"`
	AudioFormat   string         `json:"audioFormat,omitempty"`
	NoAudioReason string         `json:"noAudioReason,omitempty"`
	Rejection     error          `json:"-"`
	State         string         `json:"state,omitempty"` // 轮次结束时会话状态 idle / grounded
	History       []chat.Message `json:"history,omitempty"`
}

func (r *Result) HasAudio() bool {
	return r != nil && len(r.Audio) > 0
}
