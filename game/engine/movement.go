package engine

// Step applies the agent's next scripted command and advances its script
// cursor. Agents without a script get Invalid.
func (b *Board) Step(a *Agent) Outcome {
	cmd := a.NextCommand()
	if cmd == nil {
		return Invalid
	}
	return b.apply(a, cmd, true)
}

// ApplyMove applies a command that did not come from the agent's script, such
// as a key press or a random chaser move. The script cursor is untouched.
func (b *Board) ApplyMove(a *Agent, cmd Command) Outcome {
	if cmd.Turns < 1 {
		cmd = NewCommand(cmd.Op, 1)
	}
	return b.apply(a, &cmd, false)
}

func (b *Board) apply(a *Agent, cmd *Command, scripted bool) Outcome {
	if a.Kind == Runner && !a.Alive {
		return RunnerDestroyed
	}
	if !a.Alive || !a.Placed {
		return Invalid
	}

	// Throttle: an agent with PASSO n acts on every (n+1)th opportunity
	if a.Waiting > 0 {
		a.Waiting--
		return Valid
	}
	a.Waiting = a.Passo

	op := cmd.Op
	if op == OpRandom {
		op = b.RandomDirection()
	}

	next := func() {
		if scripted {
			a.Advance()
		}
	}

	switch {
	case op == OpTurn:
		cmd.TurnsLeft--
		if cmd.TurnsLeft <= 0 {
			cmd.TurnsLeft = cmd.Turns
			next()
		}
		return Valid
	case op == OpCharge && a.Kind == Chaser:
		a.Charged = true
		next()
		return Valid
	case !IsDirection(op):
		next()
		return Invalid
	}

	next()
	dx, dy := Delta(op)
	if a.Kind == Runner {
		return b.moveRunner(a, dx, dy)
	}
	if a.Charged {
		return b.slide(a, dx, dy)
	}
	return b.moveChaser(a, dx, dy)
}

func (b *Board) moveRunner(a *Agent, dx, dy int) Outcome {
	nx, ny := a.Pos.X+dx, a.Pos.Y+dy
	dest := b.Cell(nx, ny)
	if dest == nil {
		return Invalid
	}

	// The portal is checked before walls and chasers. A chaser standing on
	// the portal keeps its cell; the runner stays put and still wins.
	if dest.Portal {
		if dest.Occupant != ChaserMark {
			b.relocate(a, nx, ny, RunnerMark)
		}
		return PortalReached
	}
	if dest.Wall {
		return Invalid
	}
	if dest.Occupant == ChaserMark {
		b.destroyRunner()
		return RunnerDestroyed
	}

	if dest.Collectible {
		dest.Collectible = false
		a.Points += CollectiblePoints
	}
	b.relocate(a, nx, ny, RunnerMark)
	return Valid
}

func (b *Board) moveChaser(a *Agent, dx, dy int) Outcome {
	nx, ny := a.Pos.X+dx, a.Pos.Y+dy
	dest := b.Cell(nx, ny)
	if dest == nil || dest.Wall || dest.Occupant == ChaserMark {
		return Invalid
	}

	if dest.Occupant == RunnerMark {
		b.destroyRunner()
		b.relocate(a, nx, ny, ChaserMark)
		return RunnerDestroyed
	}
	b.relocate(a, nx, ny, ChaserMark)
	return Valid
}

// slide moves a charged chaser until the next cell is off the grid, a wall
// or another chaser. Portals are floor to chasers. Entering the runner's cell destroys it and
// ends the slide there. The charge is spent either way.
func (b *Board) slide(a *Agent, dx, dy int) Outcome {
	a.Charged = false

	x, y := a.Pos.X, a.Pos.Y
	hit := false
	for {
		c := b.Cell(x+dx, y+dy)
		if c == nil || c.Wall || c.Occupant == ChaserMark {
			break
		}
		x, y = x+dx, y+dy
		if c.Occupant == RunnerMark {
			hit = true
			break
		}
	}

	if x == a.Pos.X && y == a.Pos.Y {
		return Invalid
	}
	if hit {
		b.destroyRunner()
	}
	b.relocate(a, x, y, ChaserMark)
	if hit {
		return RunnerDestroyed
	}
	return Valid
}

func (b *Board) relocate(a *Agent, x, y int, mark Occupant) {
	if old := b.Cell(a.Pos.X, a.Pos.Y); old != nil && old.Occupant == mark {
		old.Occupant = Empty
	}
	b.Cells[b.Index(x, y)].Occupant = mark
	a.Pos = Position{X: x, Y: y}
}

func (b *Board) destroyRunner() {
	r := b.Runner
	if r == nil || !r.Alive {
		return
	}
	r.Alive = false
	if c := b.Cell(r.Pos.X, r.Pos.Y); c != nil && c.Occupant == RunnerMark {
		c.Occupant = Empty
	}
}
