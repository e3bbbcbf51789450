package types

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMalformedVote       = errors.New("malformed vote")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrScoresFinal         = errors.New("scores already final")
	ErrScoresNotFinal      = errors.New("scores not final")
	ErrProposalNotClosed   = errors.New("proposal not closed")
	ErrProposalNotPassed   = errors.New("proposal did not pass")
	ErrNoExecutionPlugin   = errors.New("no execution plugin")
	ErrStaleBond           = errors.New("stale bond")
	ErrOracleUnreachable   = errors.New("oracle unreachable")
	ErrInvalidOracleAnswer = errors.New("invalid oracle answer")
	ErrTransientNetwork    = errors.New("transient network error")
	ErrInsufficientGas     = errors.New("insufficient gas")
	ErrRevertedTransaction = errors.New("reverted transaction")
	ErrBatchHashMismatch   = errors.New("batch hash mismatch")
	ErrBatchMismatch       = errors.New("proposal already submitted with another batch")
	ErrNotApproved         = errors.New("execution not approved")
	ErrExecutionComplete   = errors.New("execution already complete")
	ErrTerminal            = errors.New("record in terminal state")
	ErrCancelNotAllowed    = errors.New("cancel not allowed once question is open")
	ErrVersionConflict     = errors.New("record version conflict")
	ErrDuplicateTx         = errors.New("duplicate transaction in batch")
	ErrTxLogMismatch       = errors.New("transaction log does not match batch")
	ErrAnswerExpired       = errors.New("approved answer expired")
)
