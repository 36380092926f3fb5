package game

import "slices"

// waitQueue holds session ids awaiting a human partner, oldest first.
type waitQueue struct {
	ids []string
}

func (q *waitQueue) push(id string) {
	if q.contains(id) {
		return
	}
	q.ids = append(q.ids, id)
}

func (q *waitQueue) remove(id string) bool {
	i := slices.Index(q.ids, id)
	if i < 0 {
		return false
	}
	q.ids = slices.Delete(q.ids, i, i+1)
	return true
}

func (q *waitQueue) contains(id string) bool {
	return slices.Contains(q.ids, id)
}

// popFirst removes and returns the oldest id accepted by eligible.
func (q *waitQueue) popFirst(eligible func(id string) bool) (string, bool) {
	for i, id := range q.ids {
		if eligible(id) {
			q.ids = slices.Delete(q.ids, i, i+1)
			return id, true
		}
	}
	return "", false
}

func (q *waitQueue) snapshot() []string {
	return slices.Clone(q.ids)
}

func (q *waitQueue) len() int {
	return len(q.ids)
}
