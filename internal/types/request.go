package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/fxsim/backtester/pkg/ferrors"
)

// OpenPositionRequest is the public request shape for position_open.
// StopLoss/TakeProfit are optional at the boundary (moznion/go-optional);
// internally a none collapses to fixedpoint.Price(0), the ledger's "no
// stop" sentinel.
type OpenPositionRequest struct {
	Symbol     string                      `validate:"required"`
	Type       PositionType                `validate:"oneof=0 1"`
	Volume     float64                     `validate:"required,gt=0"`
	Price      float64                     `validate:"gte=0"`
	StopLoss   optional.Option[float64]    `validate:"-"`
	TakeProfit optional.Option[float64]    `validate:"-"`
	Comment    string                      `validate:"-"`
}

// OpenOrderRequest is the public request shape for order_open.
type OpenOrderRequest struct {
	Symbol         string                   `validate:"required"`
	OrderType      OrderType                `validate:"lte=7"`
	Volume         float64                  `validate:"required,gt=0"`
	Price          float64                  `validate:"required,gt=0"`
	StopLimitPrice optional.Option[float64] `validate:"-"`
	StopLoss       optional.Option[float64] `validate:"-"`
	TakeProfit     optional.Option[float64] `validate:"-"`
	TypeFilling    TypeFilling              `validate:"lte=2"`
	TypeTime       TypeTime                 `validate:"lte=3"`
	Magic          uint64                   `validate:"-"`
	Comment        string                   `validate:"-"`
}

var validate = validator.New()

// Validate runs struct-tag validation over an OpenPositionRequest.
func (r OpenPositionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeInvalidRequest, "invalid open-position request", err)
	}

	return nil
}

// Validate runs struct-tag validation over an OpenOrderRequest.
func (r OpenOrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeInvalidRequest, "invalid open-order request", err)
	}

	return nil
}

// OptionToPrice collapses an optional float64 into a price sentinel where
// none maps to zero ("no stop").
func OptionToPrice(opt optional.Option[float64], toPrice func(float64) int64) int64 {
	if opt.IsNone() {
		return 0
	}

	return toPrice(opt.Unwrap())
}
