package filters

import "blueprints-server/core"

// Undersampling keeps the points at indices 0, Step, 2*Step, ... and always
// the last point, so the drawing keeps both of its ends.
type Undersampling struct {
	Step int
}

func (u Undersampling) Apply(bp core.Blueprint) core.Blueprint {
	n := len(bp.Points)
	if u.Step < 2 || n <= 2 {
		return bp
	}

	points := make([]core.Point, 0, n/u.Step+2)
	for i := 0; i < n; i += u.Step {
		points = append(points, bp.Points[i])
	}
	if (n-1)%u.Step != 0 {
		points = append(points, bp.Points[n-1])
	}

	return core.Blueprint{Author: bp.Author, Name: bp.Name, Points: points}
}
