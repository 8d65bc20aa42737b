package calendar

import (
	"sort"
	"time"
)

// Holiday 一个休市日
type Holiday struct {
	Name string
	Date time.Time
}

// fixedDateHolidays 固定日期的节日：落在周六提前到周五，落在周日顺延到周一
var fixedDateHolidays = []struct {
	name      string
	month     time.Month
	day       int
	sinceYear int
}{
	{"New Years", time.January, 1, 0},
	{"Juneteenth", time.June, 19, 2022},
	{"Independence Day", time.July, 4, 0},
	{"Christmas", time.December, 25, 0},
}

// weekdayHolidays 按 "某月第 n 个星期几" 定义的节日，n=-1 表示最后一个
var weekdayHolidays = []struct {
	name    string
	month   time.Month
	weekday time.Weekday
	nth     int
}{
	{"MLK Day", time.January, time.Monday, 3},
	{"Presidents Day", time.February, time.Monday, 3},
	{"Memorial Day", time.May, time.Monday, -1},
	{"Labor Day", time.September, time.Monday, 1},
	{"Thanksgiving", time.November, time.Thursday, 4},
}

// HolidaysInYear 某一年的交易所休市日 (只含工作日上的休市)，按日期排序
//
// 半天交易日不计入。元旦落在周六时不把上一年 12-31 计为休市。
func HolidaysInYear(year int) []Holiday {
	out := make([]Holiday, 0, 10)

	out = append(out, Holiday{Name: "Good Friday", Date: goodFriday(year)})

	for _, h := range fixedDateHolidays {
		if year < h.sinceYear {
			continue
		}
		d := date(year, h.month, h.day)
		switch d.Weekday() {
		case time.Saturday:
			d = d.AddDate(0, 0, -1)
		case time.Sunday:
			d = d.AddDate(0, 0, 1)
		}
		if d.Year() != year {
			continue
		}
		out = append(out, Holiday{Name: h.name, Date: d})
	}

	for _, h := range weekdayHolidays {
		out = append(out, Holiday{Name: h.name, Date: nthWeekday(year, h.month, h.weekday, h.nth)})
	}

	sortHolidays(out)
	return out
}

func sortHolidays(hs []Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}

// nthWeekday 某月第 n 个 weekday；n<0 时从月末倒数
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	if n > 0 {
		first := date(year, month, 1)
		shift := (int(weekday) - int(first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, shift+7*(n-1))
	}
	last := date(year, month+1, 0)
	shift := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -shift+7*(n+1))
}

// goodFriday 复活节前的周五 (格里历复活节算法)
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	easter := date(year, time.Month(month), day)
	return easter.AddDate(0, 0, -2)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// truncate 只保留年月日 (UTC)
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return date(y, m, d)
}
