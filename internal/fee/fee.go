package fee

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"raffle/internal/oracle"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the number of decimals of the native currency's smallest unit.
const NativeDecimals = 18

type RateSource interface {
	LatestRate(ctx context.Context) (oracle.Rate, error)
}

// Calculator converts a fixed fiat entry price into native-currency units at
// the current oracle rate. It never caches a quote.
type Calculator struct {
	source    RateSource
	fiatPrice decimal.Decimal
	scaled    *big.Int
}

func NewCalculator(source RateSource, fiatPrice decimal.Decimal) (*Calculator, error) {
	if source == nil {
		return nil, errors.New("fee: rate source is required")
	}

	if !fiatPrice.IsPositive() {
		return nil, fmt.Errorf("fee: fiat entry price must be positive, got %s", fiatPrice)
	}

	return &Calculator{
		source:    source,
		fiatPrice: fiatPrice,
		scaled:    fiatPrice.Shift(NativeDecimals).BigInt(),
	}, nil
}

func (c *Calculator) FiatPrice() decimal.Decimal {
	return c.fiatPrice
}

// CurrentEntryFee returns fiatPrice / rate in the smallest native unit,
// truncated toward zero.
func (c *Calculator) CurrentEntryFee(ctx context.Context) (*big.Int, error) {
	rate, err := c.source.LatestRate(ctx)
	if err != nil {
		return nil, err
	}

	if rate.Value == nil || rate.Value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive rate", oracle.ErrUnavailable)
	}

	numerator := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(rate.Decimals)), nil)
	numerator.Mul(numerator, c.scaled)

	return numerator.Quo(numerator, rate.Value), nil
}

// ToNative renders an amount of the smallest unit as a native-currency decimal.
func ToNative(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -NativeDecimals)
}
