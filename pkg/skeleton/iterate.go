package skeleton

// Visitor receives a joint index and its parent index (NoParent for roots).
type Visitor func(joint, parent int)

// IterateDepthFirst calls visit for every joint of the subtree rooted at from,
// parents before children and siblings in storage order. Pass NoParent to
// walk the whole skeleton including every root. An out of range from is a
// no-op.
//
// The walk keeps an explicit fixed-size stack and does not allocate.
func IterateDepthFirst(s *Skeleton, from int, visit Visitor) {
	n := s.NumJoints()
	if n == 0 || from < NoParent || from >= n {
		return
	}

	var stack [MaxJoints]int16
	depth := 0

	cur := int(s.firstRoot)
	if from != NoParent {
		cur = from
	}

	for cur != NoParent {
		visit(cur, int(s.parents[cur]))

		if child := s.firstChild[cur]; child != NoParent {
			stack[depth] = int16(cur)
			depth++
			cur = int(child)
			continue
		}

		// Unwind until a frame with an unvisited sibling is found.
		for {
			if depth == 0 {
				if from == NoParent {
					cur = int(s.nextSibling[cur])
				} else {
					cur = NoParent
				}
				break
			}
			if sibling := s.nextSibling[cur]; sibling != NoParent {
				cur = int(sibling)
				break
			}
			depth--
			cur = int(stack[depth])
		}
	}
}

// IterateReverse calls visit for every joint with children before parents.
func IterateReverse(s *Skeleton, visit Visitor) {
	for i := s.NumJoints() - 1; i >= 0; i-- {
		visit(i, int(s.parents[i]))
	}
}
