// Package menu holds the dialog graph: an immutable, validated table of
// nodes loaded once at startup. Referential integrity is checked at load
// time so a broken link is a boot failure, not a mid-dialog surprise.
package menu

import (
	"fmt"
	"strings"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/validate"
)

// Cross-cutting navigation inputs, checked before per-node choice
// resolution. A menu node may still declare its own "0" option; the
// back-link table wins.
const (
	InputBack = "0"
	InputHome = "00"
	InputExit = "000"
)

// Graph is the validated dialog program. Read-only after Load; safe for
// concurrent use without synchronization.
type Graph struct {
	nodes    map[string]*domain.Node
	entry    string
	mainMenu string
	back     map[string]string
}

// Entry returns the id of the node shown on the first keystroke.
func (g *Graph) Entry() string { return g.entry }

// MainMenu returns the id of the post-authentication home node.
func (g *Graph) MainMenu() string { return g.mainMenu }

// Resolve returns the node for id, or domain.ErrUnknownNode.
func (g *Graph) Resolve(id string) (*domain.Node, error) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownNode, id)
	}
	return node, nil
}

// BackTarget returns the "go back one step" target for a node. Nodes without
// an explicit back link fall back to the main menu.
func (g *Graph) BackTarget(nodeID string) string {
	if target, ok := g.back[nodeID]; ok {
		return target
	}
	return g.mainMenu
}

// Nodes returns all node ids, for introspection tooling.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// validateGraph checks referential integrity, validation types, and
// operation ids. All problems are collected so one boot reports everything.
func validateGraph(g *Graph, v *validate.Validator) error {
	var problems []string

	addRef := func(from, target string) {
		if target == "" {
			return
		}
		if _, ok := g.nodes[target]; !ok {
			problems = append(problems, fmt.Sprintf("node %q references missing node %q", from, target))
		}
	}

	if _, ok := g.nodes[g.entry]; !ok {
		problems = append(problems, fmt.Sprintf("entry node %q not defined", g.entry))
	}
	if _, ok := g.nodes[g.mainMenu]; !ok {
		problems = append(problems, fmt.Sprintf("main menu node %q not defined", g.mainMenu))
	}

	for id, node := range g.nodes {
		switch node.Kind {
		case domain.NodeKindStatic:
			addRef(id, node.Next)
		case domain.NodeKindMenu:
			if len(node.Options) == 0 {
				problems = append(problems, fmt.Sprintf("menu node %q has no options", id))
			}
			for choice, opt := range node.Options {
				if opt.Exit {
					continue
				}
				if opt.Next == "" {
					problems = append(problems, fmt.Sprintf("menu node %q option %q has no target", id, choice))
					continue
				}
				addRef(id, opt.Next)
			}
		case domain.NodeKindInput:
			if node.StoreAs == "" {
				problems = append(problems, fmt.Sprintf("input node %q has no storeAs field", id))
			}
			if node.Next == "" {
				problems = append(problems, fmt.Sprintf("input node %q has no next node", id))
			}
			addRef(id, node.Next)
			if node.Validation != nil && !v.Known(node.Validation.Type) {
				problems = append(problems, fmt.Sprintf("input node %q uses unknown validation type %q", id, node.Validation.Type))
			}
		case domain.NodeKindService:
			if !domain.KnownOperation(domain.Operation(node.Operation)) {
				problems = append(problems, fmt.Sprintf("service node %q uses unknown operation %q", id, node.Operation))
			}
			if node.OnSuccess == "" || node.OnError == "" {
				problems = append(problems, fmt.Sprintf("service node %q must declare onSuccess and onError", id))
			}
			addRef(id, node.OnSuccess)
			addRef(id, node.OnError)
		default:
			problems = append(problems, fmt.Sprintf("node %q has unknown kind %q", id, node.Kind))
		}

		addRef(id, node.Back)
	}

	if len(problems) > 0 {
		return fmt.Errorf("menu graph validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
