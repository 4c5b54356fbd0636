package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/types"
)

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("a\n\n\n b \r\n\r\nc")
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, SplitParagraphs("  \n\n  "))
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"# Introduction", true},
		{"1. Introduction", true},
		{"2.1 Related Work", true},
		{"第一章 绪论", true},
		{"This is a sentence.", false},
		{"1. We measured everything carefully.", false},
		{"# Title\nand a second line", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.input))
		})
	}
}

func TestHeadingTitle(t *testing.T) {
	assert.Equal(t, "Related Work", HeadingTitle("## 2.1 Related Work"))
	assert.Equal(t, "Introduction", HeadingTitle("# Introduction"))
	assert.Equal(t, "Methods", HeadingTitle("3. Methods"))
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"latin", "First one. Second one! Third?", []string{"First one.", "Second one!", "Third?"}},
		{"decimal", "Version 2.5 is out. Done.", []string{"Version 2.5 is out.", "Done."}},
		{"chinese", "第一句。第二句！第三句？", []string{"第一句。", "第二句！", "第三句？"}},
		{"no terminator", "just words", []string{"just words"}},
		{"whitespace", "A  line\nwrapped. Next.", []string{"A line wrapped.", "Next."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.input))
		})
	}
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 2, CountWords("Hello world"))
	assert.Equal(t, 4, CountWords("中文测试"))
	assert.Equal(t, 2, CountWords("it's state-of-the-art"))
	assert.Equal(t, 0, CountWords(""))
}

func TestCV(t *testing.T) {
	assert.Nil(t, CV([]float64{1}))
	assert.Nil(t, CV([]float64{0, 0}))

	uniform := CV([]float64{10, 10, 10})
	require.NotNil(t, uniform)
	assert.Equal(t, 0.0, *uniform)

	spread := CV([]float64{2, 4})
	require.NotNil(t, spread)
	assert.Equal(t, 0.333, *spread)
}

func TestCountAnchors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"year percent citation", "In 2020 we saw 45% growth [3].", 3},
		{"author citation", "(Smith, 2020) showed this.", 1},
		{"names", "We compared it with Google Research and OpenAI.", 2},
		{"plain", "this is plain text without anything.", 0},
		{"chinese", "这是一个没有数据的句子。", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountAnchors(tt.input))
		})
	}
}

func TestFindFingerprints(t *testing.T) {
	hits := FindFingerprints("We delve into a rich tapestry. Moreover, it is crucial and crucially pivotal.")
	assert.Equal(t, []types.FingerprintHit{
		{Word: "delve", Count: 1, Tier: types.LevelHigh},
		{Word: "tapestry", Count: 1, Tier: types.LevelHigh},
		{Word: "crucial", Count: 2, Tier: types.LevelMedium},
		{Word: "pivotal", Count: 1, Tier: types.LevelMedium},
		{Word: "moreover", Count: 1, Tier: types.LevelLow},
	}, hits)

	zh := FindFingerprints("综上所述，赋能至关重要。")
	assert.Len(t, zh, 3)
	assert.Equal(t, "赋能", zh[0].Word)

	assert.Empty(t, FindFingerprints("Nothing to see here."))
}

func TestCountGenericPhrases(t *testing.T) {
	assert.Equal(t, 3, CountGenericPhrases("In recent years, it plays an important role. 近年来很多"))
	assert.Equal(t, 0, CountGenericPhrases("The 2019 survey found a 37% drop."))
}

func TestSectionRole(t *testing.T) {
	tests := []struct {
		title string
		role  string
		order int
	}{
		{"Introduction", "introduction", 0},
		{"Related Work", "related_work", 1},
		{"Methods", "method", 2},
		{"Experimental Results", "results", 3},
		{"结论", "conclusion", 5},
		{"Acknowledgements", "", -1},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			role, order := SectionRole(tt.title)
			assert.Equal(t, tt.role, role)
			assert.Equal(t, tt.order, order)
		})
	}
}

func TestLongestIncreasing(t *testing.T) {
	assert.Equal(t, 6, longestIncreasing([]int{0, 1, 2, 3, 4, 5}))
	assert.Equal(t, 2, longestIncreasing([]int{5, 0, 3}))
	assert.Equal(t, 0, longestIncreasing(nil))
}
