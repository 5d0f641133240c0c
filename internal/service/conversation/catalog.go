package conversation

import (
	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/service/digest"
)

// Catalog 一种语言下的全部固定文案
type Catalog struct {
	Locale string

	// 种子提示词模板（text/template 语法）
	PersonaTemplate string
	SpeechRules     string
	GroundingRules  string

	TabularDirective string
	LoadConfirmation string
	FailureNotice    string
	FailureDetails   map[dataset.ErrorKind]string
	NoAudioReason    string

	DigestLabels digest.Labels
}

var catalogs = map[string]Catalog{
	persona.LocaleEnglish: {
		Locale: persona.LocaleEnglish,
		PersonaTemplate: "You are {{.name}}, {{.title}}. {{.description}}\n" +
			"Tone: {{.tone}}\n" +
			"Guidance: {{.hint}}\n\n" +
			"{{.rules}}",
		SpeechRules: "Your replies are read aloud to the user. Answer in plain conversational sentences. " +
			"Do not use rich text markup such as headings, bullets, bold text or tables. " +
			"If you do not have information about the shelter animals, say so and suggest saying load the data.",
		GroundingRules: "Use only the shelter data in the next system message to answer questions about the animals. " +
			"Do not invent animals or facts that are not in the data. " +
			"Do not use rich text markup such as headings, bullets, bold text or tables.",
		TabularDirective: "The user is asking for a list. Use only facts from the shelter data. " +
			"Write the list as plain lines without bullets, numbering symbols or table syntax. " +
			"Leave one blank line between the list and a short closing remark. " +
			"The closing remark must be a complete sentence that sounds natural when spoken on its own.",
		LoadConfirmation: "I've loaded the latest shelter data. What would you like to know about the animals?",
		FailureNotice:    "Sorry, I couldn't load the shelter data right now. Please try again in a little while.",
		FailureDetails: map[dataset.ErrorKind]string{
			dataset.KindNotFound:  "The shelter data could not be loaded because the data source was not found. Tell the user the data is unavailable and do not invent facts about the animals.",
			dataset.KindMalformed: "The shelter data could not be loaded because the data source is unreadable or empty. Tell the user the data is unavailable and do not invent facts about the animals.",
			dataset.KindUnknown:   "The shelter data could not be loaded because of an unexpected error. Tell the user the data is unavailable and do not invent facts about the animals.",
		},
		NoAudioReason: "This answer is a list, so it is shown as text only.",
		DigestLabels:  digest.EnglishLabels(),
	},
	persona.LocaleChinese: {
		Locale: persona.LocaleChinese,
		PersonaTemplate: "你是{{.name}}，{{.title}}。{{.description}}\n" +
			"语气：{{.tone}}\n" +
			"提示：{{.hint}}\n\n" +
			"{{.rules}}",
		SpeechRules: "你的回复会被朗读给用户。请用自然的口语句子回答，不要使用标题、项目符号、加粗或表格等富文本格式。" +
			"如果你不了解收容所动物的信息，请如实说明，并建议用户说“加载数据”。",
		GroundingRules: "回答关于动物的问题时只能使用下一条系统消息中的收容所数据，不要编造数据中没有的动物或事实。" +
			"不要使用标题、项目符号、加粗或表格等富文本格式。",
		TabularDirective: "用户希望得到一个列表。只使用收容所数据中的事实。列表用普通文本逐行书写，不要使用项目符号、编号符号或表格语法。" +
			"列表和简短的结束语之间空一行，结束语必须是一句单独朗读也自然的完整句子。",
		LoadConfirmation: "我已经加载了最新的收容所数据。你想了解哪只小动物？",
		FailureNotice:    "抱歉，暂时无法加载收容所数据，请稍后再试。",
		FailureDetails: map[dataset.ErrorKind]string{
			dataset.KindNotFound:  "收容所数据加载失败：找不到数据源。请告诉用户数据暂不可用，不要编造任何动物信息。",
			dataset.KindMalformed: "收容所数据加载失败：数据源无法解析或为空。请告诉用户数据暂不可用，不要编造任何动物信息。",
			dataset.KindUnknown:   "收容所数据加载失败：发生未知错误。请告诉用户数据暂不可用，不要编造任何动物信息。",
		},
		NoAudioReason: "这条回复是列表，只以文字显示。",
		DigestLabels:  digest.ChineseLabels(),
	},
}

// CatalogFor returns the catalog for locale, falling back to English.
func CatalogFor(locale string) Catalog {
	if c, ok := catalogs[locale]; ok {
		return c
	}
	return catalogs[persona.LocaleEnglish]
}

func (c Catalog) failureDetail(kind dataset.ErrorKind) string {
	if detail, ok := c.FailureDetails[kind]; ok {
		return detail
	}
	return c.FailureDetails[dataset.KindUnknown]
}
