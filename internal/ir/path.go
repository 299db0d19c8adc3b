package ir

import (
	"strconv"
	"strings"
)

// Lookup resolves a dotted path such as "entity.labs.a1c" against an
// object tree. Each segment indexes an IRObject by key; a numeric segment
// may also index an IRArray. Lookup never panics: any missing key, index
// out of range or non-container along the way returns (nil, false).
//
// This is the single resolver shared by condition evaluation, context
// construction and trigger parameter mapping.
func Lookup(root IRObject, path string) (IRValue, bool) {
	if root == nil || path == "" {
		return nil, false
	}

	var cur IRValue = root
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		switch node := cur.(type) {
		case IRObject:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}

// SetPath writes value at a dotted path, creating intermediate objects as
// needed. An intermediate that exists but is not an object is replaced.
func SetPath(root IRObject, path string, value IRValue) {
	if root == nil || path == "" {
		return
	}

	segs := strings.Split(path, ".")
	node := root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(IRObject)
		if !ok {
			child = IRObject{}
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
}
