// Package period models the (year, month) units of work and the lookback
// policy that decides which month folders a run visits.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// names are the canonical month folder names, indexed by month-1.
var names = [12]string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

// Period is one month folder. The zero value is not valid.
type Period struct {
	Year  int
	Month time.Month
}

// Name returns the canonical uppercase Spanish month name.
func (p Period) Name() string {
	if p.Month < time.January || p.Month > time.December {
		return ""
	}
	return names[p.Month-1]
}

// Prefix returns the two-digit month number used for local names.
func (p Period) Prefix() string {
	return fmt.Sprintf("%02d", int(p.Month))
}

// YearFolder returns the name of the year folder.
func (p Period) YearFolder() string {
	return strconv.Itoa(p.Year)
}

func (p Period) String() string {
	return p.Name() + " " + p.YearFolder()
}

// Prev returns the month before p, rolling into the previous year.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Current returns the period containing now.
func Current(now time.Time) Period {
	return Period{Year: now.Year(), Month: now.Month()}
}

// Before returns the k months strictly before current, oldest first.
func Before(current Period, k int) []Period {
	if k <= 0 {
		return []Period{}
	}
	out := make([]Period, k)
	p := current
	for i := k - 1; i >= 0; i-- {
		p = p.Prev()
		out[i] = p
	}
	return out
}

// Plan returns the lookback periods followed by the current one, which is
// always visited last.
func Plan(now time.Time, k int) []Period {
	cur := Current(now)
	return append(Before(cur, k), cur)
}

// Names returns the twelve canonical month names in calendar order.
func Names() []string {
	return append([]string(nil), names[:]...)
}

// Parse builds a period from a month name and year, as used by manual mode.
// The name is matched case-insensitively with surrounding and inner
// whitespace ignored.
func Parse(name string, year int) (Period, error) {
	key := cases.Upper(language.Spanish).String(strings.Join(strings.Fields(name), ""))
	if year <= 0 {
		return Period{}, fmt.Errorf("%w: year %d", common.ErrInvalidPeriod, year)
	}
	for i, n := range names {
		if n == key {
			return Period{Year: year, Month: time.Month(i + 1)}, nil
		}
	}
	return Period{}, fmt.Errorf("%w: %q is not one of %s",
		common.ErrInvalidPeriod, name, strings.Join(names[:], ", "))
}
