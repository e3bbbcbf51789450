package tx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTx         = errors.New("invalid tx")
	ErrUnsupportedTxType = errors.New("unsupported tx type")
	ErrUnmatchedTxType   = errors.New("unmatched tx type")
	ErrMissingPayload    = errors.New("missing tx payload")
)

// flexUint decodes integers sent either as JSON numbers or as decimal strings.
type flexUint uint64

func (u *flexUint) UnmarshalJSON(dat []byte) error {
	s := strings.TrimSpace(string(dat))
	if s == "null" || s == `""` {
		*u = 0
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fmt.Errorf("%w: integer %s", ErrInvalidTx, string(dat))
	}
	*u = flexUint(v)
	return nil
}
