package domain

// NodeKind constants define the control-flow behavior of a menu node.
const (
	// NodeKindStatic displays text; at most one unconditional next.
	NodeKindStatic = "static"
	// NodeKindMenu displays numbered choices and branches on the selection.
	NodeKindMenu = "menu"
	// NodeKindInput collects a validated value into a session field.
	NodeKindInput = "input"
	// NodeKindService triggers a backend call and branches on its outcome.
	// Service nodes are transparent: the subscriber never sees them.
	NodeKindService = "service"
)

// MenuOption is one selectable entry of a menu node.
type MenuOption struct {
	Next string `yaml:"next"`
	// Exit ends the session instead of transitioning.
	Exit bool `yaml:"exit,omitempty"`
	// Text overrides the END message when Exit is set.
	Text string `yaml:"text,omitempty"`
	// Store sets session fields as a side effect of choosing this option
	// (e.g. picking a network sets network=mtn for the flow ahead).
	Store map[string]string `yaml:"store,omitempty"`
}

// ValidationSpec declares how an input node's raw keystroke is checked.
// Options carries type-specific settings (lengths, bounds, networks).
type ValidationSpec struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:",inline"`
}

// Node is one immutable state of the dialog graph.
type Node struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`

	// Text is the prompt template. It may reference collected fields with
	// ${field} placeholders.
	Text string `yaml:"text,omitempty"`

	// Options is the choice table for menu nodes, keyed by the literal input.
	Options map[string]MenuOption `yaml:"options,omitempty"`

	// Input node configuration.
	Validation *ValidationSpec `yaml:"validation,omitempty"`
	StoreAs    string          `yaml:"storeAs,omitempty"`
	// ErrorMessage overrides the validator's message on rejection.
	ErrorMessage string `yaml:"errorMessage,omitempty"`

	// Next is the unconditional target for static and input nodes.
	// Empty means terminal for static nodes.
	Next string `yaml:"next,omitempty"`

	// Service node configuration.
	Operation string   `yaml:"operation,omitempty"`
	Params    []string `yaml:"params,omitempty"`
	OnSuccess string   `yaml:"onSuccess,omitempty"`
	OnError   string   `yaml:"onError,omitempty"`

	// Back is the explicit "0" target. Defaults to the main menu.
	Back string `yaml:"back,omitempty"`
}

// Terminal reports whether reaching this node ends the dialog.
func (n *Node) Terminal() bool {
	switch n.Kind {
	case NodeKindStatic:
		return n.Next == "" && len(n.Options) == 0
	default:
		return false
	}
}
