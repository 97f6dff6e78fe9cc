package motion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Session is the set of user tracks recorded in one sitting. Global bounds
// for navigation are [0, DurationMs].
type Session struct {
	Users      []*UserTrack // ordered by UserID
	StartTime  time.Time    // wall-clock time of the first sample
	DurationMs float64
}

// NewSession sorts tracks by user ID and derives the session duration from
// the latest sample across all users.
func NewSession(start time.Time, tracks []*UserTrack) (*Session, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("session has no users: %w", ErrEmptyTrack)
	}
	for i, u := range tracks {
		if u == nil {
			return nil, fmt.Errorf("session track %d is nil: %w", i, ErrEmptyTrack)
		}
	}
	users := append([]*UserTrack(nil), tracks...)
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	var end float64
	for i, u := range users {
		if i > 0 && users[i-1].UserID == u.UserID {
			return nil, fmt.Errorf("duplicate user id %d in session", u.UserID)
		}
		if u.EndMs() > end {
			end = u.EndMs()
		}
	}
	return &Session{Users: users, StartTime: start, DurationMs: end}, nil
}

// User returns the track for id, or nil if the session has no such user.
func (s *Session) User(id int) *UserTrack {
	i := sort.Search(len(s.Users), func(i int) bool { return s.Users[i].UserID >= id })
	if i < len(s.Users) && s.Users[i].UserID == id {
		return s.Users[i]
	}
	return nil
}

// UserIDs returns the user IDs in ascending order.
func (s *Session) UserIDs() []int {
	ids := make([]int, len(s.Users))
	for i, u := range s.Users {
		ids[i] = u.UserID
	}
	return ids
}

// PositionBounds returns the component-wise minimum and maximum head
// position over every sample in the session.
func (s *Session) PositionBounds() (lo, hi r3.Vec) {
	first := true
	for _, u := range s.Users {
		for _, smp := range u.samples {
			p := smp.Position
			if first {
				lo, hi = p, p
				first = false
				continue
			}
			lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	return lo, hi
}
