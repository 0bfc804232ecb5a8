package runner

import "fmt"

// Policy decides what a failed build command means for the rest of the run.
type Policy int

const (
	// Continue logs the failure and carries on with the next command.
	Continue Policy = iota
	// Abort stops at the first failed command.
	Abort
)

// ParsePolicy parses "continue" or "abort". The empty string is Continue.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "continue":
		return Continue, nil
	case "abort":
		return Abort, nil
	}
	return Continue, fmt.Errorf("unknown failure policy %q, want continue or abort", s)
}

func (p Policy) String() string {
	if p == Abort {
		return "abort"
	}
	return "continue"
}

// Steps runs commands under a policy and remembers whether any failed.
type Steps struct {
	Policy Policy

	failed []error
}

// Failed reports whether any command run through s failed.
func (s *Steps) Failed() bool { return len(s.failed) > 0 }

// Errs returns every recorded failure.
func (s *Steps) Errs() []error { return s.failed }

// Check records err. It returns err when the policy is Abort and nil
// otherwise, so callers can write `if err := s.Check(...); err != nil`.
func (s *Steps) Check(err error) error {
	if err == nil {
		return nil
	}
	s.failed = append(s.failed, err)
	if s.Policy == Abort {
		return err
	}
	return nil
}
