package fee

import "errors"

// 校验失败按顺序返回第一个错误，调用方需修正输入后重新提交
var (
	ErrInvalidAmount  = errors.New("invalid amount: enter a number greater than 0")
	ErrInvalidFeeRate = errors.New("invalid fee rate: enter a number from 0 up to (not including) 100")
	ErrInvalidPrice   = errors.New("invalid price: enter a number greater than 0")
	ErrUnknownMode    = errors.New("unknown calculation mode")
)

// IsValidation reports whether err is one of the input validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidFeeRate) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrUnknownMode)
}
