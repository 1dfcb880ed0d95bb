package internal

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// HumanizeLibraryName is the name {% load %} uses for the humanize filters
const HumanizeLibraryName = "humanize"

// Humanize filter names
const (
	FilterNameIntComma    = "intcomma"
	FilterNameOrdinal     = "ordinal"
	FilterNameNaturalTime = "naturaltime"
	FilterNameNaturalSize = "naturalsize"
	FilterNameAPNumber    = "apnumber"
)

var apNumbers = [...]string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// NewHumanizeLibrary returns the loadable library of human-friendly
// number and time filters.
func NewHumanizeLibrary() *Library {
	lib := NewLibrary(nil)

	// intcomma(value) groups thousands: 4500 -> 4,500
	lib.MustRegisterFilter(FilterNameIntComma, func(value any) any {
		switch v := value.(type) {
		case float32, float64:
			f, _ := ToFloat(v)
			return humanize.Commaf(f)
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return humanize.Comma(n)
			}
			if f, err := strconv.ParseFloat(v, FloatBitSize64); err == nil {
				return humanize.Commaf(f)
			}
			return value
		}
		if n, err := ToInt(value); err == nil {
			return humanize.Comma(int64(n))
		}
		return value
	}, FilterIsSafe())

	// ordinal(value) appends the English ordinal suffix: 3 -> 3rd
	lib.MustRegisterFilter(FilterNameOrdinal, func(value any) any {
		n, err := ToInt(value)
		if err != nil {
			return value
		}
		if n < 0 {
			return strconv.Itoa(n)
		}
		return humanize.Ordinal(n)
	}, FilterIsSafe())

	// naturaltime(value time.Time) describes value relative to now
	lib.MustRegisterFilter(FilterNameNaturalTime, func(value any) any {
		t, ok := asTime(value)
		if !ok {
			return value
		}
		return humanize.RelTime(t, time.Now(), "ago", "from now")
	}, FilterExpectsLocaltime())

	// naturalsize(value) formats a byte count: 82854982 -> 83 MB
	lib.MustRegisterFilter(FilterNameNaturalSize, func(value any) any {
		n, err := ToInt(value)
		if err != nil || n < 0 {
			return value
		}
		return humanize.Bytes(uint64(n))
	})

	// apnumber(value) spells out 1 to 9
	lib.MustRegisterFilter(FilterNameAPNumber, func(value any) any {
		n, err := ToInt(value)
		if err != nil || n < 1 || n > len(apNumbers) {
			return value
		}
		return apNumbers[n-1]
	}, FilterIsSafe())

	return lib
}
