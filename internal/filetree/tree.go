package filetree

import (
	"fmt"
	"strings"
)

// Tree is a whole-snapshot file tree: file path -> file contents. There are
// no directory entries; hierarchy is encoded in the path string itself
// (e.g. "src/index.js"). The unit of consistency is always the whole tree.
type Tree map[string]string

// Clone returns an independent copy of the tree.
func (t Tree) Clone() Tree {
	if t == nil {
		return Tree{}
	}
	out := make(Tree, len(t))
	for path, contents := range t {
		out[path] = contents
	}
	return out
}

// Validate rejects trees containing paths that could escape a mount root.
func (t Tree) Validate() error {
	for path := range t {
		if err := ValidatePath(path); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePath checks a single file path for mount safety.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty file path")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("absolute file path %q", path)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("file path %q contains NUL", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return fmt.Errorf("file path %q escapes the tree root", path)
		}
		if seg == "" {
			return fmt.Errorf("file path %q has an empty segment", path)
		}
	}
	return nil
}
