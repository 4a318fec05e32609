package xslt

// Template is a compiled xsl:template: a match pattern (or a name, for
// call-template targets) plus its instantiation body. Priority and
// declaration order are what the matcher (match.go) uses to pick a winner
// among several candidates (spec §4.7).
type Template struct {
	Name    string // empty unless this is (also) a named template
	Match   *Pattern
	Mode    string
	Priority    float64
	HasPriority bool // true when @priority was given explicitly

	Params []WithParam // xsl:param children, evaluated as defaults for call-template/apply-templates args
	Body   []Instr

	ImportPrecedence int
	DeclOrder        int // position within its precedence band, for the last-in-document tie-break
}

// defaultPriority computes the priority spec §4.7 assigns a pattern lacking
// an explicit @priority: 0 for a literal QName test, -0.25 for a namespace
// wildcard ({uri}*: or prefix:*), -0.5 for node()/text()/* or any pattern
// that is not a single relative step.
func defaultPriority(p *Pattern) float64 {
	if len(p.Alts) != 1 {
		return 0.5 // a union pattern's priority is computed per-alternative by the matcher; this is only a fallback
	}
	alt := p.Alts[0]
	if len(alt.Steps) != 1 {
		return -0.5
	}
	step := alt.Steps[0]
	if step.DeepBefore || alt.AbsoluteRoot {
		return -0.5
	}
	switch {
	case step.Test.TestKind != 0:
		return -0.5
	case step.Test.Local == "*" && step.Test.Prefix == "":
		return -0.5
	case step.Test.Local == "*":
		return -0.25
	default:
		return 0
	}
}

// EffectivePriority returns the template's priority, falling back to
// defaultPriority when @priority was not specified.
func (t *Template) EffectivePriority() float64 {
	if t.HasPriority {
		return t.Priority
	}
	if t.Match == nil {
		return 0
	}
	return defaultPriority(t.Match)
}
