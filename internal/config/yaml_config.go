package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned by SetYamlConfig for keys not in KnownKeys.
var ErrUnknownKey = errors.New("unknown config key")

// WorkspaceConfigPath returns the config file `config set` writes to: the
// nearest workspace config, or ./.spectree/config.yaml when there is none.
func WorkspaceConfigPath() (string, error) {
	if dir, err := FindWorkspaceDir(); err == nil {
		return filepath.Join(dir, "config.yaml"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, WorkspaceDirName, "config.yaml"), nil
}

// SetYamlConfig writes key = value into the YAML file at path, creating the
// file and any nested mappings as needed. Dotted keys become nested
// mappings (cms.url -> cms: {url: ...}). Comments elsewhere are preserved.
func SetYamlConfig(path, key, value string) error {
	if _, ok := KnownKeys[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var doc yaml.Node
	data, err := os.ReadFile(path) // #nosec G304 - config path chosen by the user
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", path)
	}

	setPath(root, strings.Split(key, "."), value)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// setPath finds or creates the nested mapping entry and sets its scalar.
func setPath(m *yaml.Node, parts []string, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, val := m.Content[i], m.Content[i+1]
		if k.Value != parts[0] {
			continue
		}
		if len(parts) == 1 {
			*val = *scalar(value)
			return
		}
		if val.Kind != yaml.MappingNode {
			*val = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		setPath(val, parts[1:], value)
		return
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: parts[0]}
	if len(parts) == 1 {
		m.Content = append(m.Content, keyNode, scalar(value))
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, keyNode, child)
	setPath(child, parts[1:], value)
}

// scalar lets YAML infer canonical bools and numbers; everything else, "007"
// included, stays a string.
func scalar(value string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	var probe any
	if err := yaml.Unmarshal([]byte(value), &probe); err == nil {
		switch probe.(type) {
		case bool, int, float64:
			if fmt.Sprint(probe) == value {
				return n
			}
		}
	}
	n.Tag = "!!str"
	return n
}

// GetYamlConfig reads key from the YAML file at path. Missing files and keys
// yield "".
func GetYamlConfig(path, key string) string {
	data, err := os.ReadFile(path) // #nosec G304 - config path chosen by the user
	if err != nil {
		return ""
	}
	var cur any
	if err := yaml.Unmarshal(data, &cur); err != nil {
		return ""
	}
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[part]
	}
	if cur == nil {
		return ""
	}
	return fmt.Sprint(cur)
}
