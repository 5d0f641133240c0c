package digest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
)

// Fact 一条聚合结论
type Fact struct {
	Index    int // 记录在数据集中的位置
	Name     string
	Value    float64
	Sentence string
}

// Digest 数据集的纯文本摘要，作为系统消息注入会话。
type Digest struct {
	Text         string
	TopActivity  *Fact
	TopInquiries *Fact
}

// markupReplacer 去掉会被朗读或渲染成富文本的字符
var markupReplacer = strings.NewReplacer("#", "", "*", "", "`", "", "|", "/", "_", " ")

// Summarize builds a deterministic digest of records. Ties on either aggregate
// go to the record that appears first.
func Summarize(records []dataset.Record, labels Labels) Digest {
	var b strings.Builder
	fmt.Fprintf(&b, labels.Heading, len(records))

	for i, record := range records {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, labels.RecordTitle, i+1)
		writeField(&b, labels.Name, text(record.Name, labels))
		writeField(&b, labels.Species, text(record.Species, labels))
		writeField(&b, labels.Breed, text(record.Breed, labels))
		age := labels.Unknown
		if record.Age != nil {
			age = fmt.Sprintf(labels.AgeValue, formatNumber(*record.Age))
		}
		writeField(&b, labels.Age, age)
		writeField(&b, labels.Sex, text(record.Sex, labels))
		writeField(&b, labels.Vaccinated, flag(record.Vaccinated, labels))
		writeField(&b, labels.Neutered, flag(record.Neutered, labels))
		writeField(&b, labels.GoodWithKids, flag(record.GoodWithKids, labels))
		activity := labels.Unknown
		if total, ok := record.TotalActivity(); ok {
			activity = activityValue(labels, total, len(record.Activity))
		}
		writeField(&b, labels.Activity, activity)
		inquiries := labels.Unknown
		if record.Inquiries != nil {
			inquiries = strconv.Itoa(*record.Inquiries)
		}
		writeField(&b, labels.Inquiries, inquiries)
	}

	result := Digest{
		TopActivity:  topActivity(records, labels),
		TopInquiries: topInquiries(records, labels),
	}

	b.WriteString("\n\n")
	b.WriteString(labels.SummaryTitle)
	b.WriteString("\n")
	if result.TopActivity != nil {
		b.WriteString(result.TopActivity.Sentence)
	} else {
		b.WriteString(labels.NoActivity)
	}
	b.WriteString("\n")
	if result.TopInquiries != nil {
		b.WriteString(result.TopInquiries.Sentence)
	} else {
		b.WriteString(labels.NoInquiries)
	}

	result.Text = b.String()
	return result
}

func topActivity(records []dataset.Record, labels Labels) *Fact {
	var best *Fact
	for i, record := range records {
		total, ok := record.TotalActivity()
		if !ok {
			continue
		}
		if best == nil || total > best.Value {
			best = &Fact{Index: i, Name: displayName(record, i, labels), Value: total}
		}
	}
	if best != nil {
		best.Sentence = fmt.Sprintf(labels.TopActivity, best.Name, formatNumber(best.Value))
	}
	return best
}

func topInquiries(records []dataset.Record, labels Labels) *Fact {
	var best *Fact
	for i, record := range records {
		if record.Inquiries == nil {
			continue
		}
		value := float64(*record.Inquiries)
		if best == nil || value > best.Value {
			best = &Fact{Index: i, Name: displayName(record, i, labels), Value: value}
		}
	}
	if best != nil {
		best.Sentence = fmt.Sprintf(labels.TopInquiries, best.Name, int(best.Value))
	}
	return best
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString("\n")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
}

func displayName(record dataset.Record, index int, labels Labels) string {
	if record.Name != nil {
		if name := clean(*record.Name); name != "" {
			return name
		}
	}
	return fmt.Sprintf(labels.Unnamed, index+1)
}

func text(value *string, labels Labels) string {
	if value == nil {
		return labels.Unknown
	}
	if cleaned := clean(*value); cleaned != "" {
		return cleaned
	}
	return labels.Unknown
}

func flag(value *bool, labels Labels) string {
	switch {
	case value == nil:
		return labels.Unknown
	case *value:
		return labels.Yes
	default:
		return labels.No
	}
}

func activityValue(labels Labels, total float64, days int) string {
	// 中文模板先写天数
	if strings.Index(labels.ActivityVal, "%d") < strings.Index(labels.ActivityVal, "%s") {
		return fmt.Sprintf(labels.ActivityVal, days, formatNumber(total))
	}
	return fmt.Sprintf(labels.ActivityVal, formatNumber(total), days)
}

func clean(value string) string {
	cleaned := markupReplacer.Replace(value)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimLeft(cleaned, "-> ")
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
