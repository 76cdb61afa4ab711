package main

import (
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// editLine renders the character edits turning from into to, with
// deletions as [-text-] and insertions as {+text+}. It reports false
// when the edits cover more than half of the shorter string, in which
// case the new value reads better on its own.
func editLine(from, to string, p *palette) (string, bool) {
	dmp := diffpatch.New()
	multiLine := strings.Contains(from, "\n") && strings.Contains(to, "\n")
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, multiLine))
	size := 0
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffpatch.DiffDelete:
			size += len(d.Text)
			b.WriteString(p.del("[-" + d.Text + "-]"))
		case diffpatch.DiffInsert:
			size += len(d.Text)
			b.WriteString(p.value("{+" + d.Text + "+}"))
		}
	}
	if size == 0 || size > min(len(from), len(to))/2 {
		return "", false
	}
	return b.String(), true
}
