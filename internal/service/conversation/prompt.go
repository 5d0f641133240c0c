package conversation

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
)

// buildSeedPrompt 用 eino 模板渲染人设 + 规则，渲染失败时退回到拼接版本
func buildSeedPrompt(ctx context.Context, p persona.Persona, catalog Catalog, rules string) string {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(catalog.PersonaTemplate))
	messages, err := tpl.Format(ctx, map[string]any{
		"name":        p.Name,
		"title":       p.Title,
		"description": p.Description,
		"tone":        p.Tone,
		"hint":        p.PromptHint,
		"rules":       rules,
	})
	if err != nil || len(messages) == 0 || messages[0].Content == "" {
		log.Printf("[conversation] seed template for %s failed, using basic prompt: %v", p.ID, err)
		return buildBasicSeedPrompt(p, rules)
	}
	return messages[0].Content
}

func buildBasicSeedPrompt(p persona.Persona, rules string) string {
	return fmt.Sprintf("%s, %s. %s\n\n%s", p.Name, p.Title, p.PromptHint, rules)
}
