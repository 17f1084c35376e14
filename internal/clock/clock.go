package clock

import "time"

const Placeholder = "--:--:--"

// Local extrapolates the upstream current time between polls: the anchor plus
// whole seconds elapsed on the local wall clock since it was set.
type Local struct {
	now      func() time.Time
	loc      *time.Location
	anchor   time.Time
	setAt    time.Time
	anchored bool
}

func New(loc *time.Location) *Local {
	return NewWithNow(loc, time.Now)
}

func NewWithNow(loc *time.Location, now func() time.Time) *Local {
	if loc == nil {
		loc = time.UTC
	}
	return &Local{now: now, loc: loc}
}

func (c *Local) Reset(anchor time.Time) {
	c.anchor = anchor
	c.setAt = c.now()
	c.anchored = true
}

func (c *Local) Clear() {
	c.anchor = time.Time{}
	c.setAt = time.Time{}
	c.anchored = false
}

func (c *Local) Anchored() bool {
	return c.anchored
}

func (c *Local) Now() (time.Time, bool) {
	if !c.anchored {
		return time.Time{}, false
	}
	elapsed := c.now().Sub(c.setAt).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return c.anchor.Add(elapsed), true
}

// Display renders the extrapolated time as HH:MM:SS.
func (c *Local) Display() string {
	t, ok := c.Now()
	if !ok {
		return Placeholder
	}
	return t.In(c.loc).Format("15:04:05")
}
