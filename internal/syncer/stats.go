package syncer

import "fmt"

// Stats counts the outcome of translations in a package or a whole batch.
type Stats struct {
	Downloaded int
	Locked     int
	Errors     int
}

// Add folds other into s.
func (s *Stats) Add(other Stats) {
	s.Downloaded += other.Downloaded
	s.Locked += other.Locked
	s.Errors += other.Errors
}

// Total is the number of translations seen.
func (s Stats) Total() int {
	return s.Downloaded + s.Locked + s.Errors
}

func (s Stats) String() string {
	return fmt.Sprintf("%d downloaded, %d locked, %d failed", s.Downloaded, s.Locked, s.Errors)
}
