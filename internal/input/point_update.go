package input

// UpdatePoint folds a freshly reported point into a persistent one.
//
// The previous position has to be captured before the current position is
// overwritten: lastPosition is the position of the frame before this one,
// not the incoming position.
func UpdatePoint(from EventPoint, into *EventPoint) {
	Detach(into)
	d := into.d
	d.pressure = from.Pressure()

	fromGlobal := from.GlobalPosition()
	switch from.State() {
	case StatePressed:
		d.globalPressPos = fromGlobal
		d.globalLastPos = fromGlobal
		if d.pressure < 0 {
			d.pressure = 1
		}
	case StateReleased:
		if !d.globalPos.Eq(fromGlobal) {
			d.globalLastPos = d.globalPos
		}
		d.pressure = 0
	default:
		if !d.globalPos.Eq(fromGlobal) {
			d.globalLastPos = d.globalPos
		}
		if d.pressure < 0 {
			d.pressure = 1
		}
	}

	d.state = from.State()
	d.pos = from.Position()
	d.scenePos = from.ScenePosition()
	d.globalPos = fromGlobal
	d.ellipseDiameters = from.EllipseDiameters()
	d.rotation = from.Rotation()
	d.velocity = from.Velocity()
	d.uniqueID = from.UniqueID()
}

// SetTimestamp records the time of the current frame and, for devices that
// do not report velocity themselves, updates the smoothed velocity of the
// point's canonical entry in the device's active point table.
//
// A press may share its timestamp with a move synthesized just before it,
// so the press time and position are recorded even when t has not
// advanced. Beyond that, setting the same timestamp again is a no-op.
func SetTimestamp(p *EventPoint, t uint64) {
	if p.d != nil {
		if p.d.state == StatePressed {
			Detach(p)
			p.d.pressTimestamp = t
			p.d.globalPressPos = p.d.globalPos
		}
		if p.d.timestamp == t {
			return
		}
	}
	Detach(p)

	dev := p.Device()
	var entry *PointEntry
	if dev != nil && dev.points != nil {
		// A point whose sequence has ended keeps its own timestamp only.
		entry, _ = dev.points.QueryPointByID(p.ID())
	}
	if entry != nil {
		Detach(&entry.point)
		pd := entry.point.d
		if t > pd.timestamp {
			pd.lastTimestamp = pd.timestamp
			pd.timestamp = t
			if p.d.state == StatePressed {
				pd.pressTimestamp = t
			}
			if pd.lastTimestamp > 0 && !dev.HasCapability(CapVelocity) {
				moved := pd.globalPos.Sub(pd.globalLastPos)
				sample := moved.Div(float64(t - pd.lastTimestamp)).Mul(1000)
				pd.velocity = sample.Mul(velocityGain).Add(pd.velocity.Mul(1 - velocityGain))
				logger.Debugf("velocity %v filtered %v based on movement %v -> %v over time %d -> %d",
					sample, pd.velocity, pd.globalLastPos, pd.globalPos, pd.lastTimestamp, pd.timestamp)
			}
			if pd != p.d {
				p.d.lastTimestamp = pd.lastTimestamp
				p.d.velocity = pd.velocity
			}
		}
	}
	p.d.timestamp = t
}
