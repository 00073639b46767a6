// Package mini compiles mini-notation, the compact rhythm language used for
// inline patterns, into patterns of words.
//
//	bd sn         two steps per cycle
//	~             rest
//	[bd sn] hh    sub-sequence in one step
//	<bd sn cp>    one step per cycle, in rotation
//	[bd, hh hh]   parallel groups, also (bd, hh hh)
//	bd*2 bd/2     speed up, slow down
//	bd! bd!3      repeat the step; a lone ! repeats the previous step
//	bd? bd?0.3    drop events randomly
//	bd@0.25       shift later by a quarter cycle
//	bd(3,8,2)     euclidean rhythm: pulses, steps and optional rotation
package mini

import "github.com/looptide/looptide/pattern"

// Compile parses text into a pattern. Malformed text returns a *ParseError;
// the resulting pattern itself can always be queried.
func Compile(text string) (pattern.Pattern[string], error) {
	node, err := Parse(text)
	if err != nil {
		return pattern.Silence[string](), err
	}
	return node.Pattern(), nil
}

// MustCompile is like Compile but panics on error. For static text only.
func MustCompile(text string) pattern.Pattern[string] {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Pattern converts the syntax tree into combinators.
func (n *Node) Pattern() pattern.Pattern[string] {
	var p pattern.Pattern[string]
	switch n.Type {
	case WordNode:
		p = pattern.Pure(n.Word)
	case RestNode:
		p = pattern.Silence[string]()
	case SeqNode:
		p = pattern.FastCat(n.childPatterns()...)
	case AltNode:
		p = pattern.SlowCat(n.childPatterns()...)
	case StackNode:
		p = pattern.Stack(n.childPatterns()...)
	}
	for _, m := range n.Mods {
		switch m.Op {
		case ModFast:
			p = p.Fast(m.Amount)
		case ModSlow:
			p = p.Slow(m.Amount)
		case ModDegrade:
			p = p.DegradeByWith(m.Seed, m.Prob)
		case ModLate:
			p = p.Late(m.Amount)
		case ModEuclid:
			p = pattern.Euclid(p, m.Pulses, m.Steps, m.Rotation)
		}
	}
	return p
}

func (n *Node) childPatterns() []pattern.Pattern[string] {
	ret := make([]pattern.Pattern[string], len(n.Children))
	for i, c := range n.Children {
		ret[i] = c.Pattern()
	}
	return ret
}
