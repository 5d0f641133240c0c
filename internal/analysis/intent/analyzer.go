package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Label 表示一条用户话语命中的意图。
type Label string

const (
	None    Label = "none"
	Load    Label = "load"    // 重新加载数据集
	Tabular Label = "tabular" // 请求列表/表格式回答
)

// triggerTables 每种意图的触发短语，大小写不敏感。
// 拉丁字母短语按词边界匹配，中文短语按子串匹配。
var triggerTables = map[Label][]string{
	Load: {
		"load the data", "load data", "load the dataset", "load dataset",
		"reload the data", "refresh the data", "update the data", "load the latest data",
		"加载数据", "读取数据", "载入数据", "刷新数据", "更新数据",
	},
	Tabular: {
		"a list", "list all", "list the", "list every", "list them", "enumerate",
		"in a table", "as a table", "a table of", "in table form",
		"show me all", "show all", "all the animals", "all animals", "every animal", "which animals",
		"列出", "列表", "表格", "所有动物", "全部动物", "所有的动物",
	},
}

// Matches reports whether text contains any trigger phrase of label.
func Matches(label Label, text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, phrase := range triggerTables[label] {
		if containsPhrase(normalized, phrase) {
			return true
		}
	}
	return false
}

// containsPhrase 对以字母数字开头/结尾的短语要求两侧不是字母数字，
// 避免 "table" 命中 "suitable" 这类词内子串。
func containsPhrase(text, phrase string) bool {
	for offset := 0; offset <= len(text)-len(phrase); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(text, start, phrase) && boundaryAfter(text, end, phrase) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, start int, phrase string) bool {
	first, _ := utf8.DecodeRuneInString(phrase)
	if !isLatinWord(first) || start == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:start])
	return !isLatinWord(prev)
}

func boundaryAfter(text string, end int, phrase string) bool {
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if !isLatinWord(last) || end == len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	return !isLatinWord(next)
}

func isLatinWord(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
