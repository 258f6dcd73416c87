package ast

// Walk traverses the tree depth-first and calls fn for each node.
// Returning false from fn skips the node's children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *Literal, *Identifier, *Variable, *Selector:
		// Leaf nodes
	case *Possessive:
		Walk(n.Object, fn)
		if n.Computed != nil {
			Walk(n.Computed, fn)
		}
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.Operand, fn)
	case *Call:
		Walk(n.Callee, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Positional:
		if n.Target != nil {
			Walk(n.Target, fn)
		}
	case *ArrayLit:
		for _, it := range n.Items {
			Walk(it, fn)
		}
	case *ObjectLit:
		for _, f := range n.Fields {
			Walk(f.Value, fn)
		}
	case *StyleRef:
		if n.Of != nil {
			Walk(n.Of, fn)
		}
	case *Command:
		for _, a := range n.Args {
			Walk(a, fn)
		}
		if n.Target != nil {
			Walk(n.Target, fn)
		}
	case *CommandSequence:
		walkBody(n.Commands, fn)
	case *If:
		Walk(n.Condition, fn)
		walkBody(n.Then, fn)
		for _, arm := range n.ElseIfs {
			Walk(arm.Condition, fn)
			walkBody(arm.Body, fn)
		}
		walkBody(n.Else, fn)
	case *Repeat:
		if n.Count != nil {
			Walk(n.Count, fn)
		}
		if n.While != nil {
			Walk(n.While, fn)
		}
		if n.Until != nil {
			Walk(n.Until, fn)
		}
		walkBody(n.Body, fn)
	case *ForEach:
		Walk(n.Collection, fn)
		walkBody(n.Body, fn)
	case *While:
		Walk(n.Condition, fn)
		walkBody(n.Body, fn)
	case *FetchBlock:
		Walk(n.URL, fn)
		walkBody(n.Body, fn)
	case *EventHandler:
		if n.Filter != nil {
			Walk(n.Filter, fn)
		}
		if n.From != nil {
			Walk(n.From, fn)
		}
		walkBody(n.Body, fn)
	case *Init:
		walkBody(n.Body, fn)
	case *Every:
		Walk(n.Interval, fn)
		walkBody(n.Body, fn)
	case *Behavior:
		walkBody(n.Body, fn)
	}
}

func walkBody(body []Node, fn func(Node) bool) {
	for _, stmt := range body {
		Walk(stmt, fn)
	}
}

// Commands collects every Command node under root in traversal order.
func Commands(root Node) []*Command {
	var out []*Command
	Walk(root, func(n Node) bool {
		if cmd, ok := n.(*Command); ok {
			out = append(out, cmd)
		}
		return true
	})
	return out
}

// Handlers collects every EventHandler node under root in traversal order.
func Handlers(root Node) []*EventHandler {
	var out []*EventHandler
	Walk(root, func(n Node) bool {
		if h, ok := n.(*EventHandler); ok {
			out = append(out, h)
		}
		return true
	})
	return out
}
