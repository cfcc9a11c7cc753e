package compiler

import "strings"

// ---------------------------------------------------------------------------
// AST: the tree handed to the compiler
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes. The set of node types
// is closed; Token returns the token diagnostics point at.
type Node interface {
	Token() Token
	node() // marker method
}

// Atom is a literal: Integer, Double, String, true or false, told apart by
// the token type.
type Atom struct {
	Tok Token
}

func (n *Atom) Token() Token { return n.Tok }
func (n *Atom) node()        {}

// Ident is a variable reference.
type Ident struct {
	Tok Token
}

func (n *Ident) Token() Token { return n.Tok }
func (n *Ident) node()        {}

// Name returns the identifier text.
func (n *Ident) Name() string { return n.Tok.Text }

// Bin is lhs <op> rhs; the operator is the token.
type Bin struct {
	Tok Token
	Lhs Node
	Rhs Node
}

func (n *Bin) Token() Token { return n.Tok }
func (n *Bin) node()        {}

// Array is [members].
type Array struct {
	Tok     Token
	Members []Node
}

func (n *Array) Token() Token { return n.Tok }
func (n *Array) node()        {}

// Pair is one key: value entry of an Object.
type Pair struct {
	Key   Node
	Value Node
}

// Object is { key: value ... }.
type Object struct {
	Tok   Token
	Pairs []Pair
}

func (n *Object) Token() Token { return n.Tok }
func (n *Object) node()        {}

// Let is let name = rhs; the token is the bound name.
type Let struct {
	Tok Token
	Rhs Node
}

func (n *Let) Token() Token { return n.Tok }
func (n *Let) node()        {}

// Fn is fn name(args) { body }; the token is the function name.
type Fn struct {
	Tok  Token
	Args []*Ident
	Body []Node
}

func (n *Fn) Token() Token { return n.Tok }
func (n *Fn) node()        {}

// Case is one condition { body } arm of a Match.
type Case struct {
	Cond Node
	Body Node
}

// Match evaluates to the body of the first case whose condition is not
// false, else to Default, else to false.
type Match struct {
	Tok     Token
	Cases   []Case
	Default Node // nil when absent
}

func (n *Match) Token() Token { return n.Tok }
func (n *Match) node()        {}

// Call is name(args); the token is the function name.
type Call struct {
	Tok  Token
	Args []Node
}

func (n *Call) Token() Token { return n.Tok }
func (n *Call) node()        {}

// Path is a builtin call such as std::runtime::gc::cycle(); the token is the
// root segment, Members the segments between root and leaf.
type Path struct {
	Tok     Token
	Members []*Ident
	Leaf    *Call
}

func (n *Path) Token() Token { return n.Tok }
func (n *Path) node()        {}

// Name returns the joined path, root::members::leaf.
func (n *Path) Name() string {
	root := n.Tok.Text
	if root == "" {
		root = "std"
	}
	parts := make([]string, 0, len(n.Members)+2)
	parts = append(parts, root)
	for _, m := range n.Members {
		parts = append(parts, m.Name())
	}
	parts = append(parts, n.Leaf.Tok.Text)
	return strings.Join(parts, "::")
}

// ---------------------------------------------------------------------------
// Dump
// ---------------------------------------------------------------------------

// Dump renders n as an s-expression, for debugging and tests.
func Dump(n Node) string {
	var sb strings.Builder
	dump(&sb, n)
	return sb.String()
}

func dump(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Atom:
		switch n.Tok.Type {
		case TokenString:
			sb.WriteString(`"` + n.Tok.Text + `"`)
		case TokenTrue, TokenFalse:
			sb.WriteString(n.Tok.Type.String())
		default:
			sb.WriteString(n.Tok.Text)
		}
	case *Ident:
		sb.WriteString(n.Name())
	case *Bin:
		op := n.Tok.Type.String()
		if n.Tok.Type == TokenEqual && n.Tok.Text != "" {
			op = n.Tok.Text
		}
		sb.WriteString("(" + op + " ")
		dump(sb, n.Lhs)
		sb.WriteByte(' ')
		dump(sb, n.Rhs)
		sb.WriteByte(')')
	case *Array:
		sb.WriteString("(array")
		dumpList(sb, n.Members)
		sb.WriteByte(')')
	case *Object:
		sb.WriteString("(object")
		for _, p := range n.Pairs {
			sb.WriteString(" (")
			dump(sb, p.Key)
			sb.WriteByte(' ')
			dump(sb, p.Value)
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
	case *Let:
		sb.WriteString("(let " + n.Tok.Text + " ")
		dump(sb, n.Rhs)
		sb.WriteByte(')')
	case *Fn:
		sb.WriteString("(fn " + n.Tok.Text + " (")
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(a.Name())
		}
		sb.WriteByte(')')
		dumpList(sb, n.Body)
		sb.WriteByte(')')
	case *Match:
		sb.WriteString("(match")
		for _, c := range n.Cases {
			sb.WriteString(" (")
			dump(sb, c.Cond)
			sb.WriteByte(' ')
			dump(sb, c.Body)
			sb.WriteByte(')')
		}
		if n.Default != nil {
			sb.WriteString(" (default ")
			dump(sb, n.Default)
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
	case *Call:
		sb.WriteString("(call " + n.Tok.Text)
		dumpList(sb, n.Args)
		sb.WriteByte(')')
	case *Path:
		sb.WriteString("(sys " + n.Name())
		dumpList(sb, n.Leaf.Args)
		sb.WriteByte(')')
	case nil:
		sb.WriteString("<nil>")
	}
}

func dumpList(sb *strings.Builder, nodes []Node) {
	for _, m := range nodes {
		sb.WriteByte(' ')
		dump(sb, m)
	}
}
