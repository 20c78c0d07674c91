// services/errors.go
package services

import "errors"

// Every failure is a whole-operation abort: the transaction wrapping the
// operation rolls back and no state survives. Handlers map these sentinels
// to HTTP statuses.
var (
	ErrGameExists             = errors.New("game id already exists")
	ErrGameNotFound           = errors.New("game not found")
	ErrGameNotActive          = errors.New("game is not active")
	ErrWrongGameType          = errors.New("operation does not match game type")
	ErrGameExpired            = errors.New("game deadline has passed")
	ErrDeadlineNotReached     = errors.New("game deadline has not passed yet")
	ErrWrongEntryFee          = errors.New("paid amount does not match entry fee")
	ErrAlreadyClaimed         = errors.New("player already claimed this game")
	ErrAlreadyRefunded        = errors.New("player already refunded this game")
	ErrDidNotParticipate      = errors.New("player did not participate in this game")
	ErrInsufficientPool       = errors.New("game pool cannot cover the reward")
	ErrExceedsAccumulatedFees = errors.New("withdrawal exceeds accumulated platform fees")
	ErrTransferFailed         = errors.New("value transfer failed")
	ErrReentrantCall          = errors.New("reentrant call rejected")
	ErrIndexOutOfRange        = errors.New("game index out of range")
	ErrPriceFeedUnavailable   = errors.New("price feed unavailable")
	ErrInvalidGameID          = errors.New("game id must be a url-safe slug")
	ErrInvalidAmount          = errors.New("amount must be a positive integer value")
)
