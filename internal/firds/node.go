package firds

import (
	"encoding/xml"

	"firdscli/pkg/contracts/domain"
)

// node is a generic element tree holding a single record. Only one record is
// materialised at a time.
type node struct {
	XMLName  xml.Name
	Content  string `xml:",chardata"`
	Children []node `xml:",any"`
}

func (n *node) firstChild() *node {
	if len(n.Children) == 0 {
		return nil
	}
	return &n.Children[0]
}

// child returns the first child with the qualified name
func (n *node) child(space, local string) *node {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local && c.XMLName.Space == space {
			return c
		}
	}
	return nil
}

// field returns the text of the named child. Absent and empty elements are
// both null.
func (n *node) field(space, local string) domain.NullString {
	c := n.child(space, local)
	if c == nil || c.Content == "" {
		return domain.NullString{}
	}
	return domain.NewNullString(c.Content)
}
