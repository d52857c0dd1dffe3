package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "January 2, 2006"

// FormatCurrency renders amounts as US dollars, e.g. "$1,234.56" and
// "-$200.00".
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	cents := abs.Sub(whole).StringFixed(2)[1:]

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + "$" + groupWhole(whole) + cents
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// groupWhole inserts thousands separators into a non-negative integer.
// Values past int64 are grouped from their decimal digits.
func groupWhole(whole decimal.Decimal) string {
	if whole.LessThanOrEqual(maxInt64) {
		p := message.NewPrinter(language.AmericanEnglish)
		return p.Sprintf("%d", whole.IntPart())
	}
	digits := whole.String()
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func FormatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', -1, 64) + " kg"
}

func FormatPercent(p decimal.Decimal) string {
	return p.String() + "%"
}
