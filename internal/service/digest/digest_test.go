package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
)

func str(v string) *string { return &v }
func num(v int) *int       { return &v }

func activity(minutes ...float64) []dataset.ActivityEntry {
	entries := make([]dataset.ActivityEntry, 0, len(minutes))
	for i, m := range minutes {
		entries = append(entries, dataset.ActivityEntry{Date: "2024-05-0" + string(rune('1'+i)), Minutes: m})
	}
	return entries
}

func TestSummarizeTopActivityUsesTotals(t *testing.T) {
	records := []dataset.Record{
		{Name: str("Rex"), Activity: activity(2, 3)},
		{Name: str("Bella"), Activity: activity(1, 1, 1)},
	}

	d := Summarize(records, EnglishLabels())

	require.NotNil(t, d.TopActivity)
	assert.Equal(t, "Rex", d.TopActivity.Name)
	assert.Equal(t, 5.0, d.TopActivity.Value)
	assert.Contains(t, d.Text, "Rex has the most total activity, 5 minutes.")
}

func TestSummarizeTiesGoToFirstRecord(t *testing.T) {
	records := []dataset.Record{
		{Name: str("Milo"), Activity: activity(10), Inquiries: num(4)},
		{Name: str("Luna"), Activity: activity(4, 6), Inquiries: num(4)},
	}

	d := Summarize(records, EnglishLabels())

	require.NotNil(t, d.TopActivity)
	require.NotNil(t, d.TopInquiries)
	assert.Equal(t, 0, d.TopActivity.Index)
	assert.Equal(t, "Milo", d.TopInquiries.Name)
}

func TestSummarizeSkipsRecordsWithoutField(t *testing.T) {
	records := []dataset.Record{
		{Name: str("Ghost")},
		{Activity: activity(1), Inquiries: num(2)},
	}

	d := Summarize(records, EnglishLabels())

	require.NotNil(t, d.TopActivity)
	assert.Equal(t, 1, d.TopActivity.Index)
	assert.Equal(t, "animal number 2", d.TopActivity.Name)
	assert.Equal(t, 2.0, d.TopInquiries.Value)
}

func TestSummarizeNoDataSentences(t *testing.T) {
	d := Summarize([]dataset.Record{{Name: str("Pip")}}, EnglishLabels())

	assert.Nil(t, d.TopActivity)
	assert.Nil(t, d.TopInquiries)
	assert.Contains(t, d.Text, EnglishLabels().NoActivity)
	assert.Contains(t, d.Text, EnglishLabels().NoInquiries)
}

func TestSummarizePlaceholdersAndFieldOrder(t *testing.T) {
	age := 2.5
	yes := true
	records := []dataset.Record{{Name: str("Rex"), Age: &age, Vaccinated: &yes}}

	d := Summarize(records, EnglishLabels())

	nameAt := strings.Index(d.Text, "Name: Rex")
	ageAt := strings.Index(d.Text, "Age: 2.5 years")
	require.True(t, nameAt >= 0 && ageAt > nameAt, "fields out of order:\n%s", d.Text)
	assert.Contains(t, d.Text, "Breed: unknown")
	assert.Contains(t, d.Text, "Vaccinated: yes")
	assert.Contains(t, d.Text, "Neutered: unknown")
}

func TestSummarizeHasNoMarkup(t *testing.T) {
	records := []dataset.Record{
		{Name: str("**Max** | the `best`"), Breed: str("- # terrier"), Activity: activity(3)},
	}

	d := Summarize(records, EnglishLabels())

	for _, ch := range []string{"#", "*", "`", "|"} {
		assert.NotContains(t, d.Text, ch)
	}
	for _, line := range strings.Split(d.Text, "\n") {
		assert.False(t, strings.HasPrefix(strings.TrimSpace(line), "- "), "bullet line: %q", line)
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	records := []dataset.Record{{Name: str("A"), Inquiries: num(1)}, {Name: str("B"), Inquiries: num(3)}}
	assert.Equal(t, Summarize(records, ChineseLabels()), Summarize(records, ChineseLabels()))
}
