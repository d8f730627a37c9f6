package value

import (
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
	"time"
)

var (
	DateTimeMin = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	DateTimeMax = time.Date(2089, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)

	DateTimeLongMin = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	// DateTimeLongMax the largest time representable as unix nanoseconds
	DateTimeLongMax = time.Date(2262, time.April, 11, 23, 47, 16, 854_775_807, time.UTC)
)

type bcdField struct {
	name     string
	min, max int
}

// DATE_AND_TIME byte layout, all BCD
// 0 year 1 month 2 day 3 hour 4 minute 5 second 6 ms/10 7 ms%10<<4 | weekday
var dateTimeFields = []bcdField{
	{"year", 0, 99},
	{"month", 1, 12},
	{"day", 1, 31},
	{"hour", 0, 23},
	{"minute", 0, 59},
	{"second", 0, 59},
	{"millisecond", 0, 99},
}

// DecodeDateTime decodes an 8 byte DATE_AND_TIME. Years below 90 are 20xx.
func DecodeDateTime(data []byte) (time.Time, error) {
	if len(data) < 8 {
		return time.Time{}, errorf(s7runtime.DateTime, "value", data, "need 8 bytes, got %d", len(data))
	}
	fields := make([]int, len(dateTimeFields))
	for i, f := range dateTimeFields {
		v, ok := binutil.BCDToByte(data[i])
		if !ok {
			return time.Time{}, errorf(s7runtime.DateTime, f.name, data[i:i+1], "invalid bcd")
		}
		if v < f.min || v > f.max {
			return time.Time{}, errorf(s7runtime.DateTime, f.name, data[i:i+1], "%d out of range %d..%d", v, f.min, f.max)
		}
		fields[i] = v
	}
	msDigit, weekday := int(data[7]>>4), int(data[7]&0x0f)
	if msDigit > 9 {
		return time.Time{}, errorf(s7runtime.DateTime, "millisecond", data[7:8], "invalid bcd")
	}
	if weekday < 1 || weekday > 7 {
		return time.Time{}, errorf(s7runtime.DateTime, "weekday", data[7:8], "%d out of range 1..7", weekday)
	}

	year := fields[0]
	if year < 90 {
		year += 2000
	} else {
		year += 1900
	}
	ms := fields[6]*10 + msDigit
	t := time.Date(year, time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], ms*int(time.Millisecond), time.UTC)
	if t.Day() != fields[2] {
		return time.Time{}, errorf(s7runtime.DateTime, "day", data[2:3], "%d is not a day of %d-%02d", fields[2], year, fields[1])
	}
	return t, nil
}

// EncodeDateTime encodes t as DATE_AND_TIME, truncated to milliseconds.
// The wall clock of t's location is written.
func EncodeDateTime(t time.Time) ([]byte, error) {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	if wall.Before(DateTimeMin) || wall.After(DateTimeMax) {
		return nil, errorf(s7runtime.DateTime, "year", nil, "%s outside %s..%s", wall.Format(time.RFC3339Nano), DateTimeMin.Format(time.RFC3339), DateTimeMax.Format(time.RFC3339Nano))
	}
	ms := t.Nanosecond() / int(time.Millisecond)
	return []byte{
		binutil.ByteToBCD(t.Year() % 100),
		binutil.ByteToBCD(int(t.Month())),
		binutil.ByteToBCD(t.Day()),
		binutil.ByteToBCD(t.Hour()),
		binutil.ByteToBCD(t.Minute()),
		binutil.ByteToBCD(t.Second()),
		binutil.ByteToBCD(ms / 10),
		byte(ms%10)<<4 | byte(t.Weekday()+1),
	}, nil
}

// DTL byte layout
// 0-1 year 2 month 3 day 4 weekday 5 hour 6 minute 7 second 8-11 nanosecond
var dateTimeLongFields = []bcdField{
	{"month", 1, 12},
	{"day", 1, 31},
	{"weekday", 0, 255},
	{"hour", 0, 23},
	{"minute", 0, 59},
	{"second", 0, 59},
}

// DecodeDateTimeLong decodes a 12 byte DTL. The weekday byte is not checked.
func DecodeDateTimeLong(data []byte) (time.Time, error) {
	if len(data) < 12 {
		return time.Time{}, errorf(s7runtime.DateTimeLong, "value", data, "need 12 bytes, got %d", len(data))
	}
	year := int(int16(binutil.ParseUint16(data)))
	if year < DateTimeLongMin.Year() || year > DateTimeLongMax.Year() {
		return time.Time{}, errorf(s7runtime.DateTimeLong, "year", data[:2], "%d out of range %d..%d", year, DateTimeLongMin.Year(), DateTimeLongMax.Year())
	}
	fields := make([]int, len(dateTimeLongFields))
	for i, f := range dateTimeLongFields {
		v := int(data[2+i])
		if v < f.min || v > f.max {
			return time.Time{}, errorf(s7runtime.DateTimeLong, f.name, data[2+i:3+i], "%d out of range %d..%d", v, f.min, f.max)
		}
		fields[i] = v
	}
	ns := binutil.ParseUint32(data[8:])
	if ns > 999_999_999 {
		return time.Time{}, errorf(s7runtime.DateTimeLong, "nanosecond", data[8:12], "%d out of range 0..999999999", ns)
	}
	t := time.Date(year, time.Month(fields[0]), fields[1], fields[3], fields[4], fields[5], int(ns), time.UTC)
	if t.Day() != fields[1] {
		return time.Time{}, errorf(s7runtime.DateTimeLong, "day", data[3:4], "%d is not a day of %d-%02d", fields[1], year, fields[0])
	}
	if t.After(DateTimeLongMax) {
		return time.Time{}, errorf(s7runtime.DateTimeLong, "value", data, "%s after %s", t.Format(time.RFC3339Nano), DateTimeLongMax.Format(time.RFC3339Nano))
	}
	return t, nil
}

// EncodeDateTimeLong encodes t as DTL using the wall clock of t's location.
func EncodeDateTimeLong(t time.Time) ([]byte, error) {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	if wall.Before(DateTimeLongMin) || wall.After(DateTimeLongMax) {
		return nil, errorf(s7runtime.DateTimeLong, "year", nil, "%s outside %s..%s", wall.Format(time.RFC3339Nano), DateTimeLongMin.Format(time.RFC3339), DateTimeLongMax.Format(time.RFC3339Nano))
	}
	out := make([]byte, 12)
	binutil.WriteUint16(out, uint16(t.Year()))
	out[2] = byte(t.Month())
	out[3] = byte(t.Day())
	out[4] = byte(t.Weekday() + 1)
	out[5] = byte(t.Hour())
	out[6] = byte(t.Minute())
	out[7] = byte(t.Second())
	binutil.WriteUint32(out[8:], uint32(t.Nanosecond()))
	return out, nil
}

// S5TIME: bits 12-13 time base, bits 0-11 three bcd digits
var s5TimeBases = []time.Duration{
	10 * time.Millisecond,
	100 * time.Millisecond,
	time.Second,
	10 * time.Second,
}

// S5TimeMax 999 * 10s
const S5TimeMax = 999 * 10 * time.Second

func DecodeS5Time(data []byte) (time.Duration, error) {
	if len(data) < 2 {
		return 0, errorf(s7runtime.Timer, "value", data, "need 2 bytes, got %d", len(data))
	}
	base := s5TimeBases[(data[0]>>4)&0x03]
	digits, err := decodeBCD3(s7runtime.Timer, data)
	if err != nil {
		return 0, err
	}
	return time.Duration(digits) * base, nil
}

// EncodeS5Time picks the finest time base that holds d in three digits,
// remainders below the base are truncated.
func EncodeS5Time(d time.Duration) ([]byte, error) {
	if d < 0 || d > S5TimeMax {
		return nil, errorf(s7runtime.Timer, "value", nil, "%s out of range 0..%s", d, S5TimeMax)
	}
	for i, base := range s5TimeBases {
		digits := int(d / base)
		if digits <= 999 {
			out := encodeBCD3(digits)
			out[0] |= byte(i) << 4
			return out, nil
		}
	}
	return nil, errorf(s7runtime.Timer, "value", nil, "%s out of range", d)
}

func DecodeCounter(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, errorf(s7runtime.Counter, "value", data, "need 2 bytes, got %d", len(data))
	}
	v, err := decodeBCD3(s7runtime.Counter, data)
	return uint16(v), err
}

func EncodeCounter(v uint16) ([]byte, error) {
	if v > 999 {
		return nil, errorf(s7runtime.Counter, "value", nil, "%d out of range 0..999", v)
	}
	return encodeBCD3(int(v)), nil
}

func decodeBCD3(t s7runtime.ValueType, data []byte) (int, error) {
	hundreds := int(data[0] & 0x0f)
	rest, ok := binutil.BCDToByte(data[1])
	if hundreds > 9 || !ok {
		return 0, errorf(t, "value", data[:2], "invalid bcd")
	}
	return hundreds*100 + rest, nil
}

func encodeBCD3(v int) []byte {
	return []byte{byte(v / 100), binutil.ByteToBCD(v % 100)}
}
