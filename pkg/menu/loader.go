package menu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/validate"
)

type graphFile struct {
	Entry    string        `yaml:"entry"`
	MainMenu string        `yaml:"mainMenu"`
	Nodes    []domain.Node `yaml:"nodes"`
}

// Load reads and validates a graph definition from a YAML file.
func Load(path string, v *validate.Validator) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	return Parse(data, v)
}

// Parse builds a validated Graph from YAML bytes.
func Parse(data []byte, v *validate.Validator) (*Graph, error) {
	var file graphFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse menu file: %w", err)
	}

	if file.Entry == "" {
		file.Entry = "welcome"
	}
	if file.MainMenu == "" {
		file.MainMenu = "main_menu"
	}

	g := &Graph{
		nodes:    make(map[string]*domain.Node, len(file.Nodes)),
		entry:    file.Entry,
		mainMenu: file.MainMenu,
		back:     make(map[string]string),
	}

	for i := range file.Nodes {
		node := &file.Nodes[i]
		if node.ID == "" {
			return nil, fmt.Errorf("node at index %d has no id", i)
		}
		if _, dup := g.nodes[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		g.nodes[node.ID] = node
		if node.Back != "" {
			g.back[node.ID] = node.Back
		}
	}

	if err := validateGraph(g, v); err != nil {
		return nil, err
	}
	return g, nil
}
