package model

// NodeType discriminates file nodes from directory nodes.
type NodeType string

const (
	NodeTypeFile      NodeType = "file"
	NodeTypeDirectory NodeType = "directory"
)

// FileNode is one entry of a repository tree. Directory nodes carry Children
// in the order the host returned them; file nodes carry a detected Language.
type FileNode struct {
	Name     string
	Path     string // Unique within one repository snapshot.
	Type     NodeType
	Language string      // Set for files only.
	Children []*FileNode // Set for directories only; empty when the listing failed.
}

// IsDir reports whether the node is a directory.
func (n *FileNode) IsDir() bool {
	return n.Type == NodeTypeDirectory
}

// SelectedFileContent is the text of a selected file, fetched at generation time.
type SelectedFileContent struct {
	Path    string
	Content string
}

// SubtreeFailure records a directory whose listing failed during a tree build.
// The directory itself stays in the catalog with no children.
type SubtreeFailure struct {
	Path string
	Err  error
}

// Catalog is the result of building a repository's file tree.
type Catalog struct {
	Repository Repository
	Root       []*FileNode
	Failures   []SubtreeFailure
}

// Files returns every file node in the catalog in depth-first, host order.
func (c *Catalog) Files() []*FileNode {
	if c == nil {
		return nil
	}
	var files []*FileNode
	var walk func(nodes []*FileNode)
	walk = func(nodes []*FileNode) {
		for _, n := range nodes {
			if n.IsDir() {
				walk(n.Children)
				continue
			}
			files = append(files, n)
		}
	}
	walk(c.Root)
	return files
}

// Find returns the node with the given path, or nil if it is not in the catalog.
func (c *Catalog) Find(path string) *FileNode {
	if c == nil {
		return nil
	}
	var find func(nodes []*FileNode) *FileNode
	find = func(nodes []*FileNode) *FileNode {
		for _, n := range nodes {
			if n.Path == path {
				return n
			}
			if n.IsDir() {
				if found := find(n.Children); found != nil {
					return found
				}
			}
		}
		return nil
	}
	return find(c.Root)
}
