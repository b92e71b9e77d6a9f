package money

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// Currency is a supported ISO 4217 currency. Values can only be obtained from
// the package variables or ParseCurrency, so every non-zero Currency is on the
// whitelist.
type Currency struct {
	code     string
	decimals int32
	symbol   string
}

// Supported currencies.
var (
	USD = Currency{code: "USD", decimals: 2, symbol: "$"}
	EUR = Currency{code: "EUR", decimals: 2, symbol: "€"}
	GBP = Currency{code: "GBP", decimals: 2, symbol: "£"}
	JPY = Currency{code: "JPY", decimals: 0, symbol: "¥"}
	CAD = Currency{code: "CAD", decimals: 2, symbol: "CA$"}
	AUD = Currency{code: "AUD", decimals: 2, symbol: "A$"}
	CHF = Currency{code: "CHF", decimals: 2, symbol: "CHF "}
	TRY = Currency{code: "TRY", decimals: 2, symbol: "₺"}
)

var supported = map[string]Currency{
	USD.code: USD,
	EUR.code: EUR,
	GBP.code: GBP,
	JPY.code: JPY,
	CAD.code: CAD,
	AUD.code: AUD,
	CHF.code: CHF,
	TRY.code: TRY,
}

// ParseCurrency returns the supported currency for code (case-insensitive).
func ParseCurrency(code string) (Currency, error) {
	c, ok := supported[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, apperrors.Validation("currency", code,
			fmt.Sprintf("unsupported currency, must be one of: %s", strings.Join(SupportedCodes(), ", ")))
	}
	return c, nil
}

// MustParseCurrency is like ParseCurrency but panics on unknown codes.
func MustParseCurrency(code string) Currency {
	c, err := ParseCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// SupportedCodes returns the whitelisted currency codes in sorted order.
func SupportedCodes() []string {
	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Code returns the ISO 4217 code.
func (c Currency) Code() string { return c.code }

// DecimalPlaces returns the number of minor-unit digits.
func (c Currency) DecimalPlaces() int { return int(c.decimals) }

// Symbol returns the display symbol.
func (c Currency) Symbol() string { return c.symbol }

// IsZero reports whether c is the unset currency.
func (c Currency) IsZero() bool { return c.code == "" }

func (c Currency) String() string { return c.code }

// MarshalText implements encoding.TextMarshaler.
func (c Currency) MarshalText() ([]byte, error) {
	return []byte(c.code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Currency) UnmarshalText(b []byte) error {
	parsed, err := ParseCurrency(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
