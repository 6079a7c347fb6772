package component

// Filter semantics, shared by FilterComponents and FilterConnections:
//
//   - An empty filter set means "no constraint" for that parameter.
//   - Within one non-empty set, membership is OR.
//   - Across the two parameters, the relationship is AND.
//
// Results preserve registry insertion order; there is no implied sort by ID.

// FilterComponents returns the components whose ID is in ids (or any, if
// ids is empty) AND whose category is in categories (or any, if empty).
func (r *Registry) FilterComponents(ids []int64, categories []Category) []Component {
	snap := r.current()

	idSet := toIDSet(ids)
	catSet := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		catSet[c] = struct{}{}
	}

	out := make([]Component, 0, len(snap.components))
	for _, c := range snap.components {
		if len(idSet) > 0 {
			if _, ok := idSet[c.ID]; !ok {
				continue
			}
		}
		if len(catSet) > 0 {
			if _, ok := catSet[c.Category]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// FilterConnections returns the connections whose start ID is in starts
// (or any, if starts is empty) AND whose end ID is in ends (or any, if
// empty).
func (r *Registry) FilterConnections(starts, ends []int64) []Connection {
	snap := r.current()

	startSet := toIDSet(starts)
	endSet := toIDSet(ends)

	out := make([]Connection, 0, len(snap.connections))
	for _, conn := range snap.connections {
		if len(startSet) > 0 {
			if _, ok := startSet[conn.Start]; !ok {
				continue
			}
		}
		if len(endSet) > 0 {
			if _, ok := endSet[conn.End]; !ok {
				continue
			}
		}
		out = append(out, conn)
	}
	return out
}

func toIDSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
