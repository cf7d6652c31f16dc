package picker

import (
	"strconv"
	"strings"
)

// Step is one segment of a structural path: a lowercase tag and the
// element's 1-based position among preceding same-tag element siblings.
type Step struct {
	Tag      string
	Position int
}

// String renders the step as tag, or tag[n] when n > 1.
func (s Step) String() string {
	if s.Position > 1 {
		return s.Tag + "[" + strconv.Itoa(s.Position) + "]"
	}
	return s.Tag
}

// Steps walks from el up to the root element and returns the path steps in
// root-to-leaf order. Tag comparison ignores case.
func Steps(t Tree, el Element) []Step {
	var steps []Step
	for cur := el; cur != nil; cur = t.Parent(cur) {
		tag := t.TagName(cur)
		pos := 1
		for sib := t.PrevSibling(cur); sib != nil; sib = t.PrevSibling(sib) {
			if strings.EqualFold(t.TagName(sib), tag) {
				pos++
			}
		}
		steps = append(steps, Step{Tag: strings.ToLower(tag), Position: pos})
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// XPath returns the structural path of el. An element with an id is
// addressed as //*[@id="..."]; any other element gets the absolute path
// built from Steps, joined with "/".
func XPath(t Tree, el Element) string {
	if id := t.Attr(el, "id"); id != "" {
		return `//*[@id="` + id + `"]`
	}
	var b strings.Builder
	for _, s := range Steps(t, el) {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}
