// 文件: pkg/calendar/calendar.go
// 交易日历：按交易所规则生成休市日，预先算好逐日累计交易日表
//
// 所有区间都是左闭右开：[d1, d2) 内的交易日数。
// Service 构造后只读，可并发使用。

package calendar

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrOutOfRange 日期超出构造时的年份范围
	ErrOutOfRange = errors.New("date outside calendar range")
	// ErrInvalidInput 参数非法 (负的年限、反向区间等)
	ErrInvalidInput = errors.New("invalid calendar input")
)

const day = 24 * time.Hour

// Service 交易日历
type Service struct {
	fromYear, toYear int
	origin           time.Time // fromYear-01-01
	closed           map[time.Time]string
	// tally[k] = [origin, origin+k 天) 内的交易日数
	tally []int
}

// ServiceOption 构造选项
type ServiceOption func(*Service) error

// WithClosures 追加规则之外的休市日
func WithClosures(closures []Closure) ServiceOption {
	return func(s *Service) error {
		for _, c := range closures {
			t, err := c.Time()
			if err != nil {
				return err
			}
			s.closed[t] = c.Reason
		}
		return nil
	}
}

// NewService 为 [fromYear, toYear] 构造日历
func NewService(fromYear, toYear int, opts ...ServiceOption) (*Service, error) {
	if toYear < fromYear {
		return nil, fmt.Errorf("%w: year range %d..%d", ErrInvalidInput, fromYear, toYear)
	}

	s := &Service{
		fromYear: fromYear,
		toYear:   toYear,
		origin:   date(fromYear, time.January, 1),
		closed:   make(map[time.Time]string),
	}
	for y := fromYear; y <= toYear; y++ {
		for _, h := range HolidaysInYear(y) {
			s.closed[h.Date] = h.Name
		}
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// 累计表多留一格，使 toYear 之后的 1 月 1 日也能作为右端点
	end := date(toYear+1, time.January, 1)
	days := int(end.Sub(s.origin) / day)
	s.tally = make([]int, days+1)
	for k := 0; k < days; k++ {
		s.tally[k+1] = s.tally[k]
		if s.open(s.origin.AddDate(0, 0, k)) {
			s.tally[k+1]++
		}
	}

	log.WithFields(log.Fields{
		"from":   fromYear,
		"to":     toYear,
		"closed": len(s.closed),
	}).Debug("[Calendar] built")
	return s, nil
}

// open 工作日且不在休市表中
func (s *Service) open(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, closed := s.closed[t]
	return !closed
}

// index 日期在累计表中的下标
func (s *Service) index(t time.Time) (int, error) {
	t = truncate(t)
	k := int(t.Sub(s.origin) / day)
	if t.Before(s.origin) || k >= len(s.tally) {
		return 0, fmt.Errorf("%w: %s not in %d..%d", ErrOutOfRange, t.Format(time.DateOnly), s.fromYear, s.toYear)
	}
	return k, nil
}

// IsTradingDay 当日是否开市
func (s *Service) IsTradingDay(t time.Time) (bool, error) {
	if _, err := s.index(t); err != nil {
		return false, err
	}
	return s.open(truncate(t)), nil
}

// Holidays 某年的休市日 (含追加的临时休市)
func (s *Service) Holidays(year int) ([]Holiday, error) {
	if year < s.fromYear || year > s.toYear {
		return nil, fmt.Errorf("%w: year %d", ErrOutOfRange, year)
	}
	out := HolidaysInYear(year)
	seen := make(map[time.Time]bool, len(out))
	for _, h := range out {
		seen[h.Date] = true
	}
	for t, reason := range s.closed {
		if t.Year() == year && !seen[t] {
			out = append(out, Holiday{Name: reason, Date: t})
		}
	}
	sortHolidays(out)
	return out, nil
}

// TradingDays [d1, d2) 内的交易日数
func (s *Service) TradingDays(d1, d2 time.Time) (int, error) {
	i, err := s.index(d1)
	if err != nil {
		return 0, err
	}
	j, err := s.index(d2)
	if err != nil {
		return 0, err
	}
	if j < i {
		return 0, fmt.Errorf("%w: %s after %s", ErrInvalidInput, d1.Format(time.DateOnly), d2.Format(time.DateOnly))
	}
	return s.tally[j] - s.tally[i], nil
}

// yearDays 某年的交易日总数
func (s *Service) yearDays(year int) (int, error) {
	return s.TradingDays(date(year, time.January, 1), date(year+1, time.January, 1))
}

// YearFraction d1 到 d2 的交易年数
//
// 每个自然年按自身的交易日数归一：首尾两年取各自的比例，中间整年各记 1。
func (s *Service) YearFraction(d1, d2 time.Time) (float64, error) {
	y1, y2 := d1.Year(), d2.Year()

	head, err := s.TradingDays(d1, date(y1+1, time.January, 1))
	if err != nil {
		return 0, err
	}
	tail, err := s.TradingDays(date(y2, time.January, 1), d2)
	if err != nil {
		return 0, err
	}
	n1, err := s.yearDays(y1)
	if err != nil {
		return 0, err
	}
	n2, err := s.yearDays(y2)
	if err != nil {
		return 0, err
	}
	if n1 == 0 || n2 == 0 {
		return 0, fmt.Errorf("%w: year without trading days", ErrInvalidInput)
	}

	jump := float64(y2 - y1 - 1)
	return jump + float64(head)/float64(n1) + float64(tail)/float64(n2), nil
}

// AddYears 从 start 起经过 years 个交易年后所在的交易日
//
// 返回唯一满足 YearFraction(start, x) <= years < YearFraction(start, x+1) 的 x。
func (s *Service) AddYears(start time.Time, years float64) (time.Time, error) {
	if years < 0 {
		return time.Time{}, fmt.Errorf("%w: years %v", ErrInvalidInput, years)
	}
	start = truncate(start)
	if _, err := s.index(start); err != nil {
		return time.Time{}, err
	}

	frac := func(t time.Time) (float64, error) { return s.YearFraction(start, t) }

	// 按自然日粗估，再逐日修正
	x := start.AddDate(0, 0, int(365*years))
	for {
		if _, err := s.index(x.AddDate(0, 0, 1)); err != nil {
			return time.Time{}, err
		}
		fx, err := frac(x)
		if err != nil {
			return time.Time{}, err
		}
		if years < fx {
			x = x.AddDate(0, 0, -1)
			continue
		}
		next, err := frac(x.AddDate(0, 0, 1))
		if err != nil {
			return time.Time{}, err
		}
		if years >= next {
			x = x.AddDate(0, 0, 1)
			continue
		}
		return x, nil
	}
}

// TradingDaysInRange 从 start 起 years 个交易年覆盖的交易日数
func (s *Service) TradingDaysInRange(start time.Time, years float64) (int, error) {
	end, err := s.AddYears(start, years)
	if err != nil {
		return 0, err
	}
	return s.TradingDays(start, end)
}

// FractionOfYearPerDay 区间内平均每个交易日对应的年数
func (s *Service) FractionOfYearPerDay(start time.Time, years float64) (float64, error) {
	n, err := s.TradingDaysInRange(start, years)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no trading days in %v years from %s", ErrInvalidInput, years, start.Format(time.DateOnly))
	}
	return years / float64(n), nil
}
