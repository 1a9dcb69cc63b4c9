package services

import "errors"

// Sentinel errors shared across services and mapped to HTTP in handlers.
// Precondition violations are expected, recoverable-by-caller conditions:
// they are returned synchronously and never leave partial writes behind.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Bracket generation
	ErrInsufficientParticipants = errors.New("not enough confirmed participants (minimum 2)")
	ErrUnsupportedBracketType   = errors.New("unsupported bracket format")
	ErrBracketAlreadyGenerated  = errors.New("bracket has already been generated for this tournament")

	// Registration
	ErrAlreadyRegistered   = errors.New("user is already registered for this tournament")
	ErrRegistrationNotOpen = errors.New("tournament registration is not open")
	ErrTournamentFull      = errors.New("tournament registration is full")
	ErrSeedTaken           = errors.New("seed is already taken in this tournament")
	ErrInvalidParticipantStatus = errors.New("participant status transition is not allowed")

	// Match state machine
	ErrAlreadyJoined      = errors.New("user has already joined this match")
	ErrMatchFull          = errors.New("match already has its configured participant count")
	ErrMatchNotJoinable   = errors.New("match can only be joined while scheduled")
	ErrNotParticipant     = errors.New("user is not a participant of this match")
	ErrNotAllReady        = errors.New("not all participants are ready")
	ErrMatchNotOngoing    = errors.New("match is not ongoing")
	ErrMatchTerminal      = errors.New("match is in a terminal state")
	ErrInvalidWinner      = errors.New("winner must be one of the match participants")
	ErrWinnerRequired     = errors.New("a winner is required for this result")

	// Concurrency conflicts: a lost race on a critical transition. These
	// are distinct from generic failures so callers can treat the lost
	// race as a benign no-op.
	ErrMatchAlreadyStarted = errors.New("match was already started by a concurrent request")
	ErrMatchAlreadyEnded   = errors.New("match was already ended by a concurrent request")
	ErrRoundAlreadyAdvanced = errors.New("round was already advanced by a concurrent request")

	// Round progression
	ErrRoundIncomplete = errors.New("round still has unfinished matches")

	// Evidence storage
	ErrStorageDisabled = errors.New("evidence storage is not configured")

	// Auth
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrForbidden          = errors.New("operation not allowed for the current user")

	// Tournaments
	ErrTournamentNotActive     = errors.New("tournament is not active")
	ErrTournamentDatesRequired = errors.New("tournament dates are required")
	ErrInvalidDateRange        = errors.New("tournament end date must be after start date")
	ErrInvalidRegDate          = errors.New("registration must close before the tournament starts")
	ErrInvalidCapacity         = errors.New("tournament max participants must be at least 2")
	ErrInvalidStatusTransition = errors.New("tournament status transition is not allowed")
)
