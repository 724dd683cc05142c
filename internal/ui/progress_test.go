package ui

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDescribe(t *testing.T) {
	color.NoColor = true
	got := describe(3, 1)
	for _, want := range []string{"passed: 3", "failed: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("describe(3, 1) = %q, missing %q", got, want)
		}
	}
}

func TestProgressBar_UpdateAndFinish(t *testing.T) {
	bar := NewProgressBar(2)
	bar.Update(1, 0)
	bar.Update(1, 1)
	bar.Finish()
}
