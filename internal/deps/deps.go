// Package deps points the frontend's editor package at either a published
// release (CI builds) or a sibling local checkout (local builds) by rewriting
// the dependency entry in package.json.
package deps

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPackage   = "@datalayer/jupyter-lexical"
	DefaultLocalPath = "file:../jupyter-ui/packages/lexical"
	DefaultVersion   = "latest"
)

var ErrNotObject = errors.New("manifest is not a JSON object")

type Options struct {
	Manifest  string // path to package.json
	Package   string
	LocalPath string // dependency value for local builds
	Version   string // dependency value for CI builds
	CI        bool
}

// Result describes what Switch did.
type Result struct {
	Target   string
	Previous string // "" when the dependency was absent
	Changed  bool
}

// DetectCI reports whether the build runs under continuous integration:
// CI or GITHUB_ACTIONS set to any non-empty value.
func DetectCI(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv("CI") != "" || getenv("GITHUB_ACTIONS") != ""
}

// Target returns the dependency value for the configured build context.
func (o Options) Target() string {
	if o.CI {
		return o.Version
	}
	return o.LocalPath
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	if o.LocalPath == "" {
		o.LocalPath = DefaultLocalPath
	}
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	return o
}

// Switch sets dependencies[Package] in the manifest to Target(). When the
// recorded value already matches, the file is not touched. Otherwise the
// manifest is rewritten as 2-space indented JSON with key order and every
// other entry preserved.
func Switch(opts Options) (Result, error) {
	opts = opts.withDefaults()
	target := opts.Target()
	res := Result{Target: target}

	info, err := os.Stat(opts.Manifest)
	if err != nil {
		return res, fmt.Errorf("stat manifest: %w", err)
	}
	data, err := os.ReadFile(opts.Manifest)
	if err != nil {
		return res, fmt.Errorf("read manifest: %w", err)
	}

	root, err := decodeJSON(data)
	if errors.Is(err, io.EOF) || (err == nil && root.Kind != yaml.MappingNode) {
		return res, fmt.Errorf("%s: %w", opts.Manifest, ErrNotObject)
	}
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", opts.Manifest, err)
	}

	depsNode := mappingValue(root, "dependencies")
	if depsNode == nil {
		depsNode = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		root.Content = append(root.Content, stringNode("dependencies"), depsNode)
	}
	if depsNode.Kind != yaml.MappingNode {
		return res, fmt.Errorf("%s: dependencies: %w", opts.Manifest, ErrNotObject)
	}

	if cur := mappingValue(depsNode, opts.Package); cur != nil {
		if cur.Kind == yaml.ScalarNode && cur.ShortTag() == "!!str" {
			res.Previous = cur.Value
			if cur.Value == target {
				return res, nil
			}
		}
		*cur = *stringNode(target)
	} else {
		depsNode.Content = append(depsNode.Content, stringNode(opts.Package), stringNode(target))
	}

	var buf bytes.Buffer
	if err := encodeJSON(&buf, root, 0); err != nil {
		return res, fmt.Errorf("encode %s: %w", opts.Manifest, err)
	}
	buf.WriteByte('\n')

	if err := writeAtomic(opts.Manifest, buf.Bytes(), info.Mode().Perm()); err != nil {
		return res, err
	}
	res.Changed = true
	slog.Info("set dependency", "package", opts.Package, "value", target, "manifest", opts.Manifest)
	return res, nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.DoubleQuotedStyle}
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
