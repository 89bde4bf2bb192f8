package sessions

import "github.com/letsee/debate-backend/pkg/apperr"

var (
	ErrSessionNotFound       = apperr.New(apperr.KindNotFound, "session not found")
	ErrInviteNotFound        = apperr.New(apperr.KindNotFound, "no session for invite code")
	ErrSessionFull           = apperr.New(apperr.KindConflict, "session already full")
	ErrInvalidPhase          = apperr.New(apperr.KindConflict, "operation not allowed in the current phase")
	ErrDebateNotActive       = apperr.New(apperr.KindConflict, "debate not in progress")
	ErrNotYourTurn           = apperr.New(apperr.KindConflict, "not your turn")
	ErrUnknownParticipant    = apperr.New(apperr.KindNotFound, "participant not seated in this session")
	ErrRoleVacant            = apperr.New(apperr.KindValidation, "no participant holds that role")
	ErrEmptyTopic            = apperr.New(apperr.KindValidation, "topic required")
	ErrTopicNotOffered       = apperr.New(apperr.KindValidation, "topic not in the offered list")
	ErrCustomTopicNotAllowed = apperr.New(apperr.KindValidation, "custom topics are not allowed for this session")
	ErrNoTopics              = apperr.New(apperr.KindValidation, "at least one topic required")
	ErrRefreshLimit          = apperr.New(apperr.KindRateLimited, "topic refresh limit reached")
)
