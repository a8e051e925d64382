package util

import (
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestStringInSlice(t *testing.T) {
	Tassert(t, StringInSlice("b", []string{"a", "b"}))
	Tassert(t, !StringInSlice("c", []string{"a", "b"}))
	Tassert(t, !StringInSlice("a", nil))
}

func TestVideoID(t *testing.T) {
	cases := map[string]string{
		"OWBT5EEikj8":                                 "OWBT5EEikj8",
		" OWBT5EEikj8\n":                              "OWBT5EEikj8",
		"https://www.youtube.com/watch?v=OWBT5EEikj8": "OWBT5EEikj8",
		"https://youtu.be/OWBT5EEikj8":                "OWBT5EEikj8",
		"https://youtube.com/shorts/OWBT5EEikj8":      "OWBT5EEikj8",
		"https://example.com/watch?v=x":               "https://example.com/watch?v=x",
	}
	for in, want := range cases {
		got := VideoID(in)
		Tassert(t, got == want, "VideoID(%q) = %q, want %q", in, got, want)
	}
}
