package worker

import "testing"

func TestStripThinking(t *testing.T) {
	cases := map[string]string{
		"Let me think.</think>Paris.":  "Paris.",
		"<think>hmm</think>  Paris.  ": "Paris.",
		"a</think>b</think>c":          "b</think>c",
		"No thinking here.":            "No thinking here.",
		"":                             "",
		"</think>":                     "",
	}
	for in, want := range cases {
		if got := stripThinking(in); got != want {
			t.Errorf("stripThinking(%q) = %q, want %q", in, got, want)
		}
	}
}
