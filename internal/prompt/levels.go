package prompt

// levelNode is one level of a pre-captured ancestry chain.
type levelNode struct {
	levels [][]string
	depth  int
}

// FromLevels builds a Node chain from per-level texts, where levels[0] holds the texts
// under the image's immediate container and each following entry is one ancestor up.
// An empty slice yields nil.
func FromLevels(levels [][]string) Node {
	if len(levels) == 0 {
		return nil
	}
	return &levelNode{levels: levels}
}

func (n *levelNode) Parent() Node {
	if n.depth+1 >= len(n.levels) {
		return nil
	}
	return &levelNode{levels: n.levels, depth: n.depth + 1}
}

func (n *levelNode) Texts() ([]string, error) {
	return n.levels[n.depth], nil
}
