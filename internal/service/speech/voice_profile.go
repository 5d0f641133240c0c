package speech

import "strings"

// voiceAliases 人设发音人别名到火山引擎音色的映射
var voiceAliases = map[string]string{
	"shelter-guide":                         "en_female_amy_jupiter_bigtts",
	"shelter-guide-zh":                      "zh_female_vv_uranus_bigtts",
	"en_default":                            "en_female_amy_jupiter_bigtts",
	"zh_default":                            "zh_female_vv_uranus_bigtts",
	"zh_male_m392_conversation":             "zh_male_M392_conversation_wvae_bigtts",
	"zh_male_m392_conversation_wvae_bigtts": "zh_male_M392_conversation_wvae_bigtts",
}

// openAIVoices OpenAI TTS 可用音色
var openAIVoices = map[string]struct{}{
	"alloy": {}, "ash": {}, "coral": {}, "echo": {}, "fable": {},
	"nova": {}, "onyx": {}, "sage": {}, "shimmer": {},
}

// NormalizeVoiceAlias 把人设别名解析为火山引擎音色，未知值原样返回
func NormalizeVoiceAlias(voice string) string {
	voice = strings.TrimSpace(voice)
	if mapped, ok := voiceAliases[strings.ToLower(voice)]; ok {
		return mapped
	}
	return voice
}

// resolveOpenAIVoice 人设别名不是 OpenAI 音色时退回配置的默认音色
func resolveOpenAIVoice(requested, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(requested))
	if _, ok := openAIVoices[normalized]; ok {
		return normalized
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return "nova"
}
