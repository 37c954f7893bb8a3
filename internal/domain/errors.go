package domain

import "errors"

var (
	ErrAlreadyEnrolled      = errors.New("profile already enrolled in a sequence")
	ErrSequenceHasNoSteps   = errors.New("sequence has no steps")
	ErrSequenceNotFound     = errors.New("sequence not found")
	ErrSequenceInactive     = errors.New("sequence is inactive")
	ErrSequenceTypeMismatch = errors.New("sequence does not apply to this profile type")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrInvalidStage         = errors.New("invalid stage for profile type")
	ErrInvalidProfileType   = errors.New("invalid profile type")
)
