package reporter

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Options are the externally supplied settings of a Reporter.
// They are the only state carried over to a clone.
type Options struct {
	// QuietOutput routes progress lines to the quiet channel instead of the display
	QuietOutput bool `yaml:"quiet-output"`
	// Strict panics on lifecycle contract violations instead of dropping the event
	Strict bool `yaml:"strict"`
	// AppPackages overrides the app package name resolved for a run id
	AppPackages map[string]string `yaml:"app-packages,omitempty"`
}

// CopyOptions copies src into dst one field at a time. Fields that cannot be
// copied are skipped and logged, so a partial copy never fails.
func CopyOptions(src Options, dst *Options, logger log.Logger) {
	var node yaml.Node
	if err := node.Encode(src); err != nil {
		logger.Warn("Failed to encode options for copy", "err", err)
		return
	}
	decodeOptionFields(&node, dst, logger)
}

// DecodeOptions applies every recognised field of a YAML document to dst.
// Unknown fields and fields with values of the wrong type are skipped.
func DecodeOptions(data []byte, dst *Options, logger log.Logger) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse options: %w", err)
	}
	if doc.Kind == 0 {
		return nil
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		decodeOptionFields(doc.Content[0], dst, logger)
		return nil
	}
	return fmt.Errorf("unexpected options document")
}

// LoadOptions reads options from a YAML file on top of dst
func LoadOptions(path string, dst *Options, logger log.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read options file %s: %w", path, err)
	}
	if err := DecodeOptions(data, dst, logger); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func decodeOptionFields(node *yaml.Node, dst *Options, logger log.Logger) {
	if node.Kind != yaml.MappingNode {
		logger.Warn("Options are not a mapping, nothing copied", "kind", node.Kind)
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := &yaml.Node{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: node.Content[i : i+2],
		}
		if err := field.Decode(dst); err != nil {
			logger.Warn("Skipping option", "option", node.Content[i].Value, "err", err)
		}
	}
}
