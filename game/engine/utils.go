package engine

// CountCollectibles counts the collectibles in a cell slice
func CountCollectibles(cells []Cell) int {
	count := 0
	for _, c := range cells {
		if c.Collectible {
			count++
		}
	}
	return count
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// FindPortal returns the position of the first portal cell
func FindPortal(b *Board) (Position, bool) {
	for i, c := range b.Cells {
		if c.Portal {
			return Position{X: i % b.Width, Y: i / b.Width}, true
		}
	}
	return Position{}, false
}

// NearestChaser returns the placed chaser closest to the runner and its
// distance
func NearestChaser(b *Board) (*Agent, int, bool) {
	if b.Runner == nil {
		return nil, 0, false
	}
	var nearest *Agent
	best := -1
	for _, c := range b.Chasers {
		if !c.Placed {
			continue
		}
		d := ManhattanDistance(b.Runner.Pos, c.Pos)
		if best == -1 || d < best {
			best = d
			nearest = c
		}
	}
	return nearest, best, nearest != nil
}

// AnalyzeThreat summarises how close the chasers are to the runner
func AnalyzeThreat(b *Board) string {
	_, d, ok := NearestChaser(b)
	switch {
	case !ok:
		return "SAFE"
	case d <= 1:
		return "CRITICAL"
	case d <= 3:
		return "DANGER"
	case d <= 6:
		return "CAUTION"
	}
	return "SAFE"
}

// PortalDistance returns the shortest walkable path length from the runner to
// the portal, or -1 when the portal cannot be reached. Chasers are ignored.
func PortalDistance(b *Board, from Position) int {
	target, ok := FindPortal(b)
	if !ok || !b.InBounds(from.X, from.Y) {
		return -1
	}

	dist := make([]int, len(b.Cells))
	for i := range dist {
		dist[i] = -1
	}
	start := b.Index(from.X, from.Y)
	dist[start] = 0
	queue := []Position{from}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == target {
			return dist[b.Index(p.X, p.Y)]
		}
		for _, op := range [...]byte{OpNorth, OpSouth, OpEast, OpWest} {
			dx, dy := Delta(op)
			n := Position{X: p.X + dx, Y: p.Y + dy}
			c := b.Cell(n.X, n.Y)
			if c == nil || (c.Wall && !c.Portal) {
				continue
			}
			if i := b.Index(n.X, n.Y); dist[i] == -1 {
				dist[i] = dist[b.Index(p.X, p.Y)] + 1
				queue = append(queue, n)
			}
		}
	}
	return -1
}
