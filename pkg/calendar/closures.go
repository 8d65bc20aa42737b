package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
)

// Closure 规则之外的临时休市 (国丧、极端天气等)，CSV 列: date,reason
type Closure struct {
	Date   string `csv:"date"`
	Reason string `csv:"reason"`
}

// ReadClosures 从 CSV 读取临时休市表
func ReadClosures(r io.Reader) ([]Closure, error) {
	var rows []Closure
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read closures: %w", err)
	}
	for _, row := range rows {
		if _, err := row.Time(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Time 解析日期 (YYYY-MM-DD)
func (c Closure) Time() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("closure date %q: %w", c.Date, err)
	}
	return t, nil
}
