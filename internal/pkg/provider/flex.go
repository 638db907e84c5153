package provider

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// FlexInt 兼容数字、数字字符串和 null 的计数字段
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, ok := parseCount(s)
		if !ok {
			// 非数字字符串按缺失处理
			*f = FlexInt{}
			return nil
		}
		*f = FlexInt{Value: v, Valid: true}
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		var nested struct {
			Count FlexInt `json:"count"`
		}
		if data[0] == '{' && json.Unmarshal(data, &nested) == nil {
			*f = nested.Count
			return nil
		}
		*f = FlexInt{}
		return nil
	}
	v, ok := parseCount(string(data))
	if !ok {
		*f = FlexInt{}
		return nil
	}
	*f = FlexInt{Value: v, Valid: true}
	return nil
}

var countSuffixes = map[byte]float64{'K': 1e3, 'M': 1e6, 'B': 1e9}

// parseCount 支持千分位和 1.2K / 3M / 1B 缩写，超出 int64 的值截断到边界
func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	mult := 1.0
	last := s[len(s)-1]
	if last >= 'a' && last <= 'z' {
		last -= 'a' - 'A'
	}
	if m, ok := countSuffixes[last]; ok {
		mult = m
		s = strings.TrimSpace(s[:len(s)-1])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	v *= mult
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64, true
	case v <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(math.Round(v)), true
}

// firstOf 取第一个有值的字段
func firstOf(fields ...FlexInt) int64 {
	for _, f := range fields {
		if f.Valid {
			return f.Value
		}
	}
	return 0
}
