package conversation

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/zhouzirui/z-shelter/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/service/digest"
)

// State 会话是否已注入数据集
type State int

const (
	Idle State = iota
	Grounded
)

func (s State) String() string {
	if s == Grounded {
		return "grounded"
	}
	return "idle"
}

// Loader 数据集加载接口，由 service/dataset 实现
type Loader interface {
	Load(ctx context.Context, location string) ([]dataset.Record, error)
}

// Confirmation 加载意图的处理结果，文本同时用于显示与朗读
type Confirmation struct {
	Text        string
	Loaded      bool
	FailureKind dataset.ErrorKind
	Digest      *digest.Digest
}

// Split 回复的显示/朗读拆分
type Split struct {
	Display       string
	Speak         string
	NoAudioReason string
}

// Conversation 单个会话的状态机。非并发安全，由会话注册表串行化访问。
type Conversation struct {
	persona  persona.Persona
	catalog  Catalog
	loader   Loader
	location string

	history []chat.Message
	state   State
}

// New 创建处于 Idle 状态、仅含种子系统消息的会话
func New(ctx context.Context, p persona.Persona, loader Loader, location string) *Conversation {
	c := &Conversation{
		persona:  p,
		catalog:  CatalogFor(p.Locale),
		loader:   loader,
		location: location,
	}
	seed := buildSeedPrompt(ctx, p, c.catalog, c.catalog.SpeechRules)
	c.history = []chat.Message{chat.SystemMessage(seed)}
	return c
}

func (c *Conversation) Persona() persona.Persona { return c.persona }
func (c *Conversation) State() State             { return c.state }

// History returns a copy of the message log.
func (c *Conversation) History() []chat.Message {
	return append([]chat.Message(nil), c.history...)
}

// DetectLoadIntent reports whether text asks to (re)load the dataset.
func DetectLoadIntent(text string) bool {
	return intent.Matches(intent.Load, text)
}

// DetectTabularIntent reports whether text asks for a list or table.
func DetectTabularIntent(text string) bool {
	return intent.Matches(intent.Tabular, text)
}

// HandleLoadIntent 重置历史并加载数据集。成功后历史恰为
// [种子+约束, 数据摘要, 确认回复]；失败时追加失败说明并保持 Idle。
// 两种情况都不调用生成服务。
func (c *Conversation) HandleLoadIntent(ctx context.Context) Confirmation {
	seed := buildSeedPrompt(ctx, c.persona, c.catalog, c.catalog.GroundingRules)
	c.history = []chat.Message{chat.SystemMessage(seed)}
	c.state = Idle

	records, err := c.loader.Load(ctx, c.location)
	if err != nil {
		kind := dataset.KindOf(err)
		log.Printf("[conversation] dataset load failed (%s): %v", kind, err)
		c.history = append(c.history, chat.SystemMessage(c.catalog.failureDetail(kind)))
		return Confirmation{Text: c.catalog.FailureNotice, FailureKind: kind}
	}

	d := digest.Summarize(records, c.catalog.DigestLabels)
	c.history = append(c.history,
		chat.SystemMessage(d.Text),
		chat.AssistantMessage(c.catalog.LoadConfirmation),
	)
	c.state = Grounded
	return Confirmation{Text: c.catalog.LoadConfirmation, Loaded: true, Digest: &d}
}

// AppendUserTurn 追加用户消息；列表意图时再追加一条格式约束系统消息。
func (c *Conversation) AppendUserTurn(text string) (tabular bool) {
	c.history = append(c.history, chat.UserMessage(text))
	if DetectTabularIntent(text) {
		c.history = append(c.history, chat.SystemMessage(c.catalog.TabularDirective))
		return true
	}
	return false
}

func (c *Conversation) AppendAssistantTurn(text string) {
	c.history = append(c.history, chat.AssistantMessage(text))
}

var blankLines = regexp.MustCompile(`\n[ \t\r]*\n`)

// SplitReplyForSpeech 拆分显示与朗读内容。非列表回复整体朗读；
// 列表回复朗读最后一段，只有一段时不朗读并给出原因。
func (c *Conversation) SplitReplyForSpeech(reply string, tabular bool) Split {
	split := Split{Display: reply}
	if !tabular {
		split.Speak = reply
		return split
	}

	paragraphs := Paragraphs(reply)
	if len(paragraphs) >= 2 {
		split.Speak = paragraphs[len(paragraphs)-1]
		return split
	}
	split.NoAudioReason = c.catalog.NoAudioReason
	return split
}

// Paragraphs splits text on blank lines, dropping empty pieces.
func Paragraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, part := range blankLines.Split(normalized, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
