package filters

import "blueprints-server/core"

// Redundancy drops every point equal to the point right before it, so a run
// of identical points collapses to its first occurrence.
type Redundancy struct{}

func (Redundancy) Apply(bp core.Blueprint) core.Blueprint {
	if len(bp.Points) < 2 {
		return bp
	}

	points := make([]core.Point, 0, len(bp.Points))
	for i, p := range bp.Points {
		if i > 0 && p == bp.Points[i-1] {
			continue
		}
		points = append(points, p)
	}

	return core.Blueprint{Author: bp.Author, Name: bp.Name, Points: points}
}
