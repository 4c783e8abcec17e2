package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Node kinds the reconciler understands. Anything else passes through unmodified.
const (
	NodeTypeDoc            = "doc"
	NodeTypeFileEmbed      = "fileEmbed"
	NodeTypeFileEmbedGroup = "fileEmbedGroup"
)

// Node is a single block in a page's document tree. Unknown node types round-trip
// through Attrs/Text/Content untouched so editor additions never break saves.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Text    string         `json:"text,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// Document is the root of a page's content tree.
type Document struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// IsEmpty reports whether the document carries no blocks at all.
func (d Document) IsEmpty() bool {
	return len(d.Content) == 0
}

// ParseDocument decodes a JSON document tree. A nil/empty payload is an empty document.
func ParseDocument(raw []byte) (Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Document{Type: NodeTypeDoc}, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, eris.Wrap(err, "decoding document tree")
	}
	if doc.Type == "" {
		doc.Type = NodeTypeDoc
	}

	return doc, nil
}

// MarshalDocument encodes the document tree for storage.
func MarshalDocument(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "encoding document tree")
	}
	return raw, nil
}

// Folder is a fileEmbedGroup block flattened for archive bookkeeping.
type Folder struct {
	UID     string
	Name    string
	FileIDs []string
}

// stringAttr reads a string attribute, tolerating missing or mistyped values.
func stringAttr(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	value, ok := attrs[key].(string)
	if !ok {
		return ""
	}
	return value
}

// FileEmbedIDs returns every file id referenced by a fileEmbed node, in document order.
// Embeds inside folders are included.
func (d Document) FileEmbedIDs() []string {
	var ids []string
	walkNodes(d.Content, func(node *Node) {
		if node.Type == NodeTypeFileEmbed {
			if id := stringAttr(node.Attrs, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	})
	return ids
}

// Folders returns every fileEmbedGroup in document order. Blank folder names are
// substituted with "Untitled N", numbering unnamed folders 1-based in encounter order.
// The counter is shared across documents via the provided state; pass a fresh counter
// when numbering restarts per owner.
func (d Document) Folders(untitled *UntitledCounter) []Folder {
	if untitled == nil {
		untitled = &UntitledCounter{}
	}

	var folders []Folder
	walkNodes(d.Content, func(node *Node) {
		if node.Type != NodeTypeFileEmbedGroup {
			return
		}

		folder := Folder{
			UID:  stringAttr(node.Attrs, "uid"),
			Name: strings.TrimSpace(stringAttr(node.Attrs, "name")),
		}
		if folder.Name == "" {
			folder.Name = untitled.Next()
		}
		for _, child := range node.Content {
			if child.Type != NodeTypeFileEmbed {
				continue
			}
			if id := stringAttr(child.Attrs, "id"); id != "" {
				folder.FileIDs = append(folder.FileIDs, id)
			}
		}
		folders = append(folders, folder)
	})

	return folders
}

// UntitledCounter numbers unnamed folders in document order. Purely cosmetic for the
// archive filename; folder identity is always the uid.
type UntitledCounter struct {
	n int
}

// Next returns the next default folder name.
func (c *UntitledCounter) Next() string {
	c.n++
	return fmt.Sprintf("Untitled %d", c.n)
}

// walkNodes visits every node depth-first in document order.
func walkNodes(nodes []Node, visit func(*Node)) {
	for i := range nodes {
		visit(&nodes[i])
		walkNodes(nodes[i].Content, visit)
	}
}

// RewriteFileEmbeds rewrites fileEmbed ids through the temporary-upload mapping and
// drops embeds whose id resolves to neither a mapped nor a known persisted file.
// Running it twice is a no-op: persisted ids pass through, broken ones are already gone.
func RewriteFileEmbeds(doc Document, idMapping map[string]string, knownIDs map[string]bool) Document {
	doc.Content = rewriteNodes(doc.Content, idMapping, knownIDs)
	return doc
}

func rewriteNodes(nodes []Node, idMapping map[string]string, knownIDs map[string]bool) []Node {
	if len(nodes) == 0 {
		return nodes
	}

	result := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if node.Type == NodeTypeFileEmbed {
			id := stringAttr(node.Attrs, "id")
			if mapped, ok := idMapping[id]; ok {
				attrs := make(map[string]any, len(node.Attrs))
				for key, value := range node.Attrs {
					attrs[key] = value
				}
				attrs["id"] = mapped
				node.Attrs = attrs
			} else if !knownIDs[id] {
				// Stale client reference: drop rather than fail the save.
				continue
			}
			result = append(result, node)
			continue
		}

		// Folders that lose all embeds to broken-reference cleanup stay in the tree;
		// the archive reconciler ignores folders below the size threshold.
		node.Content = rewriteNodes(node.Content, idMapping, knownIDs)
		result = append(result, node)
	}

	return result
}
