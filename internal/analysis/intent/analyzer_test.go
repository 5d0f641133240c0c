package intent

import "testing"

func TestMatchesLoadPhrases(t *testing.T) {
	cases := []string{
		"Please LOAD THE DATA now",
		"could you load data for me",
		"reload the data",
		"load the data.",
		"帮我加载数据",
	}
	for _, text := range cases {
		if !Matches(Load, text) {
			t.Fatalf("Matches(load, %q) = false", text)
		}
	}
}

func TestMatchesTabular(t *testing.T) {
	cases := []string{
		"Give me a list of the dogs",
		"show me all the cats",
		"Which animals are good with kids?",
		"put them in a table, please",
		"列出所有的狗",
		"介绍一下所有动物",
	}
	for _, text := range cases {
		if !Matches(Tabular, text) {
			t.Fatalf("Matches(tabular, %q) = false", text)
		}
	}
}

func TestMatchesIgnoresWordsContainingTriggers(t *testing.T) {
	cases := []string{
		"Is Rex adoptable?",
		"Is Rex suitable for an apartment?",
		"Would Rex be comfortable with cats?",
		"Is the listing up to date?",
		"Can I enlist the help of a volunteer?",
		"这只狗的所有者是谁？",
	}
	for _, text := range cases {
		if Matches(Tabular, text) {
			t.Fatalf("Matches(tabular, %q) = true", text)
		}
	}
}

func TestMatchesNone(t *testing.T) {
	cases := []string{"", "   ", "Tell me about Rex", "how old is the beagle?", "what data do you have", "upload data sheet"}
	for _, text := range cases {
		if Matches(Load, text) || Matches(Tabular, text) {
			t.Fatalf("expected no intent for %q", text)
		}
	}
}
