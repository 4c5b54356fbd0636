package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"fenced with language":    {"```json\n{\"diagnosis\": \"flat\"}\n```", `{"diagnosis": "flat"}`},
		"fenced without language": {"```\n{\"prompt\": \"x\"}\n```", `{"prompt": "x"}`},
		"fence then chatter":      {"```json\n{\"a\": 1}\n```\nLet me know if you need more.", `{"a": 1}`},
		"bare object":             {`  {"a": 1}  `, `{"a": 1}`},
		"bare array":              {`["one", "two"]`, `["one", "two"]`},
		"leading preamble":        {"Here is the revision:\n{\"modified_text\": \"t\"}", `{"modified_text": "t"}`},
		"surrounding chatter":     {"Sure. {\"a\": {\"b\": 2}} Hope this helps.", `{"a": {"b": 2}}`},
		"no JSON at all":          {"I cannot help with that.", "I cannot help with that."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSONBlock(tc.in))
		})
	}
}
