package detector

import (
	"time"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Tracker derives velocity from consecutive found positions.
type Tracker struct {
	last  sample.Pose
	valid bool
}

// Update sets p's velocity from the previous found pose. The time step
// comes from the timestamps, or from the sample period when they are
// missing. A pose that was not found resets the tracker.
func (t *Tracker) Update(p *sample.Pose) {
	if !p.Found {
		t.valid = false
		return
	}
	defer func() { t.last, t.valid = *p, true }()

	if !t.valid || t.last.Unit != p.Unit {
		return
	}
	dt := step(t.last.Info, p.Info)
	if dt <= 0 {
		return
	}
	secs := dt.Seconds()
	p.Velocity = [2]float64{
		(p.Position[0] - t.last.Position[0]) / secs,
		(p.Position[1] - t.last.Position[1]) / secs,
	}
	p.VelocityValid = true
}

func step(prev, cur sample.Info) time.Duration {
	if !prev.Timestamp.IsZero() && !cur.Timestamp.IsZero() {
		return cur.Timestamp.Sub(prev.Timestamp)
	}
	if cur.Period > 0 && cur.Counter > prev.Counter {
		return time.Duration(cur.Counter-prev.Counter) * cur.Period
	}
	return 0
}
