package fs

import (
	pathpkg "path"
	"strings"
)

// VirtualPath is an absolute, cleaned path inside the mounted archive.
type VirtualPath struct {
	// always starts with /
	path string
}

// NewVirtualPath creates a new VirtualPath instance.
// It cleans the path and ensures it's absolute.
func NewVirtualPath(p string) *VirtualPath {
	cleaned := pathpkg.Clean("/" + p)
	return &VirtualPath{path: cleaned}
}

// String returns the string representation of the path
func (vp *VirtualPath) String() string {
	return vp.path
}

// Relative returns the path without its leading separator, as the index
// expects it. The root is "".
func (vp *VirtualPath) Relative() string {
	return strings.TrimPrefix(vp.path, "/")
}

// Child returns the path of name inside vp.
func (vp *VirtualPath) Child(name string) *VirtualPath {
	if vp.IsRoot() {
		return &VirtualPath{path: "/" + name}
	}
	return &VirtualPath{path: vp.path + "/" + name}
}

// IsRoot returns true if this is the root virtual path "/"
func (vp *VirtualPath) IsRoot() bool {
	return vp.path == "/"
}
