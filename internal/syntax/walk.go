package syntax

import "errors"

// EventType distinguishes the three traversal events.
type EventType int

const (
	Enter EventType = iota
	Leave
	Token
)

func (t EventType) String() string {
	switch t {
	case Enter:
		return "enter"
	case Leave:
		return "leave"
	case Token:
		return "token"
	default:
		return "unknown"
	}
}

// Event is one step of a depth-first traversal.
type Event struct {
	Type EventType
	Node *Node
}

// SkipChildren may be returned from an Enter callback to skip the subtree.
// The matching Leave event is still delivered.
var SkipChildren = errors.New("skip children")

// Visitor receives enter and leave callbacks. It is the shape the IR
// builders implement when they share a single traversal.
type Visitor interface {
	Enter(n *Node) error
	Leave(n *Node) error
	Token(n *Node) error
}

// Walk traverses root depth-first, emitting Enter/Leave for internal nodes
// and Token for leaves, in source order.
func Walk(root *Node, fn func(Event) error) error {
	if root == nil {
		return nil
	}
	if root.Leaf {
		return fn(Event{Type: Token, Node: root})
	}
	err := fn(Event{Type: Enter, Node: root})
	switch {
	case errors.Is(err, SkipChildren):
	case err != nil:
		return err
	default:
		for _, c := range root.Children {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	}
	return fn(Event{Type: Leave, Node: root})
}

// Visit drives one or more visitors over a single traversal.
func Visit(root *Node, visitors ...Visitor) error {
	return Walk(root, func(ev Event) error {
		for _, v := range visitors {
			var err error
			switch ev.Type {
			case Enter:
				err = v.Enter(ev.Node)
			case Leave:
				err = v.Leave(ev.Node)
			case Token:
				err = v.Token(ev.Node)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
