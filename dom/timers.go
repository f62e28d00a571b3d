package dom

import (
	"sort"
	"time"
)

// TimerID identifies a pending timeout.
type TimerID int

type timer struct {
	id  TimerID
	due time.Time
	fn  func()
}

// SetTimeout schedules fn to run once the document clock has advanced by
// delay. Timers only fire from RunTimers.
func (d *Document) SetTimeout(delay time.Duration, fn func()) TimerID {
	d.nextTimer++
	d.timers = append(d.timers, &timer{id: d.nextTimer, due: d.clock().Add(delay), fn: fn})
	return d.nextTimer
}

// ClearTimeout cancels a pending timer. Unknown ids are ignored.
func (d *Document) ClearTimeout(id TimerID) {
	for i, t := range d.timers {
		if t.id == id {
			d.timers = append(d.timers[:i], d.timers[i+1:]...)
			return
		}
	}
}

// PendingTimers reports how many timers have not fired yet.
func (d *Document) PendingTimers() int { return len(d.timers) }

// RunTimers fires every timer that is due, earliest first, including timers
// scheduled by callbacks that are already due. It returns how many fired.
func (d *Document) RunTimers() int {
	fired := 0
	for {
		now := d.clock()
		sort.SliceStable(d.timers, func(i, j int) bool {
			if d.timers[i].due.Equal(d.timers[j].due) {
				return d.timers[i].id < d.timers[j].id
			}
			return d.timers[i].due.Before(d.timers[j].due)
		})
		if len(d.timers) == 0 || d.timers[0].due.After(now) {
			return fired
		}
		t := d.timers[0]
		d.timers = d.timers[1:]
		if t.fn != nil {
			t.fn()
		}
		fired++
	}
}
