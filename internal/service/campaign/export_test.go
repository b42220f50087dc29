package campaign

import "time"

// SetNowForTest overrides the service clock.
func (s *Service) SetNowForTest(f func() time.Time) { s.now = f }
