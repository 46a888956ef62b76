package service

import "github.com/roach88/pipeaudit/internal/profile"

// Profiles loads the project's connector profiles.
func (s *Service) Profiles() (profile.Set, error) {
	return profile.Load(s.cfg.Profiles())
}

// TestProfile checks that the named profile is complete and usable by a
// connector in this build.
func (s *Service) TestProfile(name string) error {
	set, err := s.Profiles()
	if err != nil {
		return err
	}
	return set.Test(name, s.registry.Available)
}
