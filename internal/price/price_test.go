package price

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

var eth = Currency{Decimals: 18, Symbol: "ETH"}

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number " + s)
	}
	return n
}

func TestFormat(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		cur    Currency
		opts   []Option
		want   string
	}{
		{"one ether", "1000000000000000000", eth, nil, "1 ETH"},
		{"one and a half", "1500000000000000000", eth, nil, "1.5 ETH"},
		{"zero", "0", eth, nil, "0 ETH"},
		{"smallest unit", "1", eth, nil, "0.000000000000000001 ETH"},
		{"thousands separators", "1234567890000000000000000", eth, nil, "1,234,567.89 ETH"},
		{"six decimals", "2500000", Currency{Decimals: 6, Symbol: "USDC"}, nil, "2.5 USDC"},
		{"no symbol", "42", Currency{Decimals: 0}, nil, "42"},
		{"below average threshold", "99999000000000000000000", eth, []Option{WithAverageFrom(100000)}, "99,999 ETH"},
		{"at average threshold", "100000000000000000000000", eth, []Option{WithAverageFrom(100000)}, "100k ETH"},
		{"millions", "1534000000000000000000000", eth, []Option{WithAverageFrom(100000)}, "1.53m ETH"},
		{"rounding carries suffix", "999999000000000000000000", eth, []Option{WithAverageFrom(1000)}, "1m ETH"},
		{"german locale", "1234500000000000000000", eth, []Option{WithLocale(language.German)}, "1.234,5 ETH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(wei(tc.amount), tc.cur, tc.opts...))
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "1.5 ETH", FormatString(" 1500000000000000000 ", eth))
	assert.Equal(t, "0 ETH", FormatString("garbage", eth))
}

func TestFormatNilAmount(t *testing.T) {
	assert.Equal(t, "0 ETH", Format(nil, eth))
}

func TestAverageUsesFewerDigits(t *testing.T) {
	amount := wei("123456789000000000000000")
	full := Format(amount, eth)
	compact := Format(amount, eth, WithAverageFrom(100000))
	assert.Equal(t, "123,456.789 ETH", full)
	assert.Equal(t, "123.46k ETH", compact)
	assert.Less(t, len(compact), len(full))
}
