package sitemap

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/will-x86/sitemapper"
)

// yamlTag renders a record as a !Tag mapping node. Attr keys are sorted
// so the output is deterministic.
type yamlTag sitemapper.Tag

func (t yamlTag) MarshalYAML() (interface{}, error) {
	attrs := &yaml.Node{Kind: yaml.MappingNode}
	keys := make([]string, 0, len(t.Attrs))
	for k := range t.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs.Content = append(attrs.Content, scalar(k), scalar(t.Attrs[k]))
	}

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!Tag",
		Content: []*yaml.Node{
			scalar("name"), scalar(t.Name),
			scalar("url"), scalar(t.URL),
			scalar("attrs"), attrs,
		},
	}, nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

// WriteYAML writes the records as one YAML list of !Tag nodes. A list
// serialization concatenates and tails cleanly, so successive crawl
// outputs can be appended to one file.
func (s *Sitemap) WriteYAML(w io.Writer) error {
	records := s.Records()
	tagged := make([]yamlTag, len(records))
	for i, r := range records {
		tagged[i] = yamlTag(r)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tagged); err != nil {
		return fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush sitemap: %w", err)
	}
	return nil
}

// WriteJSON writes the records as an indented JSON array.
func (s *Sitemap) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Records()); err != nil {
		return fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return nil
}
