package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/zhouzirui/z-shelter/backend/internal/model/speech"
)

var (
	ErrVolcengineNotConfigured = errors.New("火山引擎语音配置缺少 AppID 或 AccessToken")
	ErrOpenAINotConfigured     = errors.New("OpenAI 语音配置缺少 API Key")
)

// resolveCredentials 返回规范化后的 AppID 与 AccessToken
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrVolcengineNotConfigured
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return "", "", ErrVolcengineNotConfigured
	}
	return appID, token, nil
}

const defaultVolcengineEndpoint = "wss://openspeech.bytedance.com"

// endpoint 拼接 WebSocket 地址，BaseURL 为空时使用公网地址
func endpoint(cfg *speechmodel.SpeechConfig, path string) string {
	base := defaultVolcengineEndpoint
	if cfg != nil && strings.TrimSpace(cfg.BaseURL) != "" {
		base = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	return base + path
}
