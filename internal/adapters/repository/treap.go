package repository

// Treap index over players.
//
// Ordering: key DESC, then id ASC (deterministic). "before" means earlier in
// in-order traversal, so walking the tree yields the highest key first. The
// store keeps one treap keyed by rating and one keyed by deviation.

type node struct {
	id    int64
	key   float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before returns true if (aKey, aID) sorts ahead of (bKey, bID).
func before(aKey float64, aID int64, bKey float64, bID int64) bool {
	if aKey != bKey {
		return aKey > bKey
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id int64, key float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, key: key, prio: prio, size: 1}
	}
	if before(key, id, n.key, n.id) {
		n.left = insert(n.left, id, key, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, key, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id int64, key float64) *node {
	if n == nil {
		return nil
	}
	if key == n.key && id == n.id {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, key)
		}
	} else if before(key, id, n.key, n.id) {
		n.left = deleteNode(n.left, id, key)
	} else {
		n.right = deleteNode(n.right, id, key)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit ids in order.
func collectTopN(n *node, limit int, out *[]int64) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// collectRange appends the ids whose key lies in [low, high], skipping
// subtrees that cannot intersect the range.
func collectRange(n *node, low, high float64, out *[]int64) {
	if n == nil {
		return
	}
	if n.key > high {
		collectRange(n.right, low, high, out)
		return
	}
	if n.key < low {
		collectRange(n.left, low, high, out)
		return
	}
	collectRange(n.left, low, high, out)
	*out = append(*out, n.id)
	collectRange(n.right, low, high, out)
}

// nth returns the node at zero-based position k in order.
func nth(n *node, k int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case k < ls:
			n = n.left
		case k == ls:
			return n
		default:
			k -= ls + 1
			n = n.right
		}
	}
	return nil
}

// position returns how many nodes sort ahead of (key, id).
func position(n *node, key float64, id int64) int {
	pos := 0
	for n != nil {
		if before(key, id, n.key, n.id) {
			n = n.left
			continue
		}
		if key == n.key && id == n.id {
			return pos + nsize(n.left)
		}
		pos += nsize(n.left) + 1
		n = n.right
	}
	return pos
}
