package mini

import (
	"fmt"
	"strconv"

	"github.com/looptide/looptide/pattern"
)

// ParseError reports malformed mini-notation. Pos is a byte offset into the
// source text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mini-notation: %s at offset %d", e.Msg, e.Pos)
}

type NodeType int

const (
	WordNode  NodeType = iota
	RestNode           // ~
	SeqNode            // children share one cycle
	AltNode            // one child per cycle
	StackNode          // children play together
)

// Node is the syntax tree of a mini-notation string.
type Node struct {
	Type     NodeType
	Pos      int
	Word     string
	Children []*Node
	Mods     []Modifier
}

type ModifierOp int

const (
	ModFast ModifierOp = iota
	ModSlow
	ModDegrade
	ModLate
	ModEuclid
)

// Modifier is a postfix operator applied to a step, in source order.
type Modifier struct {
	Op     ModifierOp
	Pos    int
	Amount pattern.Fraction // ModFast, ModSlow, ModLate
	Prob   float64          // ModDegrade
	Seed   uint64           // ModDegrade, ordinal of the '?' in the source
	// ModEuclid
	Pulses, Steps, Rotation int
}

type parser struct {
	tokens   []token
	i        int
	degrades uint64
}

// Parse builds the syntax tree of text.
func Parse(text string) (*Node, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseStack(tokEOF, SeqNode, 0)
}

func (p *parser) peek() token { return p.tokens[p.i] }

func (p *parser) next() token {
	t := p.tokens[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func errorf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// parseStack parses comma separated sequences up to and including closing.
func (p *parser) parseStack(closing tokenKind, seqType NodeType, pos int) (*Node, error) {
	var groups []*Node
	for {
		seq, err := p.parseSequence(seqType, closing, pos)
		if err != nil {
			return nil, err
		}
		groups = append(groups, seq)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if t := p.next(); t.kind != closing {
		return nil, errorf(t.pos, "expected %v, got %v", closing, t.kind)
	}
	if len(groups) == 1 {
		return groups[0], nil
	}
	return &Node{Type: StackNode, Pos: pos, Children: groups}, nil
}

func (p *parser) parseSequence(seqType NodeType, closing tokenKind, pos int) (*Node, error) {
	seq := &Node{Type: seqType, Pos: p.peek().pos}
	for {
		t := p.peek()
		switch {
		case t.kind == tokComma || t.kind == closing:
			return seq, nil
		case t.kind == tokEOF:
			return nil, errorf(pos, "unclosed group, expected %v", closing)
		case t.kind == tokReplicate && t.spaced:
			p.next()
			if len(seq.Children) == 0 {
				return nil, errorf(t.pos, "nothing to repeat")
			}
			seq.Children = append(seq.Children, seq.Children[len(seq.Children)-1])
			continue
		}
		step, count, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			seq.Children = append(seq.Children, step)
		}
	}
}

// parseStep parses a term and its postfix modifiers. count is the number of
// sequence steps the term occupies after '!' replication.
func (p *parser) parseStep() (*Node, int, error) {
	node, err := p.parseTerm()
	if err != nil {
		return nil, 0, err
	}
	count := 1
	for {
		t := p.peek()
		switch t.kind {
		case tokFast, tokSlow, tokLate:
			p.next()
			amount, err := p.parseAmount(t)
			if err != nil {
				return nil, 0, err
			}
			op := map[tokenKind]ModifierOp{tokFast: ModFast, tokSlow: ModSlow, tokLate: ModLate}[t.kind]
			if op != ModLate && !amount.Gt(pattern.Fraction{}) {
				return nil, 0, errorf(t.pos, "%v needs a positive factor", t.kind)
			}
			node.Mods = append(node.Mods, Modifier{Op: op, Pos: t.pos, Amount: amount})
		case tokDegrade:
			p.next()
			prob := 0.5
			if w := p.peek(); w.kind == tokWord && !w.spaced {
				v, err := strconv.ParseFloat(w.text, 64)
				if err != nil || v < 0 || v > 1 {
					return nil, 0, errorf(w.pos, "degrade probability must be a number in [0, 1], got %q", w.text)
				}
				p.next()
				prob = v
			}
			node.Mods = append(node.Mods, Modifier{Op: ModDegrade, Pos: t.pos, Prob: prob, Seed: p.degrades})
			p.degrades++
		case tokReplicate:
			if t.spaced {
				return node, count, nil
			}
			p.next()
			if w := p.peek(); w.kind == tokWord && !w.spaced {
				n, err := strconv.Atoi(w.text)
				if err != nil || n < 1 {
					return nil, 0, errorf(w.pos, "replication count must be a positive integer, got %q", w.text)
				}
				p.next()
				count = n
			} else {
				count++
			}
		case tokOpenPar:
			if t.spaced {
				return node, count, nil
			}
			p.next()
			mod, err := p.parseEuclid(t.pos)
			if err != nil {
				return nil, 0, err
			}
			node.Mods = append(node.Mods, mod)
		default:
			return node, count, nil
		}
	}
}

func (p *parser) parseTerm() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokWord:
		return &Node{Type: WordNode, Pos: t.pos, Word: t.text}, nil
	case tokRest:
		return &Node{Type: RestNode, Pos: t.pos}, nil
	case tokOpenSeq:
		return p.parseStack(tokCloseSeq, SeqNode, t.pos)
	case tokOpenPar:
		return p.parseStack(tokClosePar, SeqNode, t.pos)
	case tokOpenAlt:
		return p.parseStack(tokCloseAlt, AltNode, t.pos)
	}
	return nil, errorf(t.pos, "unexpected %v", t.kind)
}

func (p *parser) parseAmount(op token) (pattern.Fraction, error) {
	w := p.next()
	if w.kind != tokWord {
		return pattern.Fraction{}, errorf(w.pos, "%v expects a number", op.kind)
	}
	f, err := pattern.ParseFraction(w.text)
	if err != nil {
		return pattern.Fraction{}, errorf(w.pos, "%v expects a number, got %q", op.kind, w.text)
	}
	return f, nil
}

func (p *parser) parseEuclid(pos int) (Modifier, error) {
	var args []int
	for {
		w := p.next()
		if w.kind != tokWord {
			return Modifier{}, errorf(w.pos, "euclid expects integer arguments, got %v", w.kind)
		}
		n, err := strconv.Atoi(w.text)
		if err != nil {
			return Modifier{}, errorf(w.pos, "euclid expects integer arguments, got %q", w.text)
		}
		args = append(args, n)
		t := p.next()
		if t.kind == tokClosePar {
			break
		}
		if t.kind != tokComma {
			return Modifier{}, errorf(t.pos, "expected ',' or ')' in euclid arguments, got %v", t.kind)
		}
	}
	if len(args) < 2 || len(args) > 3 {
		return Modifier{}, errorf(pos, "euclid takes 2 or 3 arguments (pulses, steps[, rotation]), got %d", len(args))
	}
	if args[1] <= 0 {
		return Modifier{}, errorf(pos, "euclid steps must be positive, got %d", args[1])
	}
	mod := Modifier{Op: ModEuclid, Pos: pos, Pulses: args[0], Steps: args[1]}
	if len(args) == 3 {
		mod.Rotation = args[2]
	}
	return mod, nil
}
