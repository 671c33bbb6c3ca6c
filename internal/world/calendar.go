package world

import (
	"sync"
	"time"
)

// Calendar maps wall-clock time onto in-game days. It never reports a value
// lower than one it already returned.
type Calendar struct {
	mu            sync.Mutex
	startDay      float64
	daysPerSecond float64
	offset        float64
	origin        time.Time
	last          float64
	now           func() time.Time
}

// NewCalendar starts at startDay and advances daysPerSecond per real second.
// A zero rate freezes the clock until Advance is called.
func NewCalendar(startDay, daysPerSecond float64, now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}
	return &Calendar{
		startDay:      startDay,
		daysPerSecond: daysPerSecond,
		origin:        now(),
		last:          startDay,
		now:           now,
	}
}

// TotalDays returns the current calendar day.
func (c *Calendar) TotalDays() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.origin).Seconds()
	days := c.startDay + c.offset + elapsed*c.daysPerSecond
	if days < c.last {
		return c.last
	}
	c.last = days
	return days
}

// Advance jumps the calendar forward; negative values are ignored.
func (c *Calendar) Advance(days float64) {
	if days <= 0 {
		return
	}
	c.mu.Lock()
	c.offset += days
	c.mu.Unlock()
}

// SetRate changes the speed from now on without moving the current day.
func (c *Calendar) SetRate(daysPerSecond float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.startDay += now.Sub(c.origin).Seconds() * c.daysPerSecond
	c.origin = now
	c.daysPerSecond = daysPerSecond
}
