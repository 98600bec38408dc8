package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuizToday means no quiz is scheduled for the current date. It is a
	// recognized empty state, not a failure.
	ErrNoQuizToday = errors.New("no quiz scheduled for today")
	// ErrNoSavedProgress means the progress slot is empty or held a stale
	// entry that was discarded.
	ErrNoSavedProgress = errors.New("no resumable progress")
	// ErrNoActiveSession is returned when an operation needs an in-progress session.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrSessionFinished is returned when a terminal session is mutated.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrMegaUnavailable means the quiz has no mega pool or the standard
	// portion has not finished yet.
	ErrMegaUnavailable = errors.New("mega quiz not available")
	// ErrAnswerCountMismatch is a data-integrity failure: the answer sequence
	// does not match the question sequence in length.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	// ErrNoResult means the last-result slot is empty.
	ErrNoResult = errors.New("no quiz result available")
)
