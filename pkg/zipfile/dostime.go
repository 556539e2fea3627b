package zipfile

import "time"

// DecodeTimestampMillis converts a packed MS-DOS date and time into milliseconds
// since the Unix epoch. Zip archives store local wall clock time, so the fields are
// interpreted in loc (time.Local when nil). The resolution is 2s.
//
// Returns Unset when modTime is Unset. Out of range components (day 0, month 0,
// second 62, ...) are normalized the way time.Date does it.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func DecodeTimestampMillis(modDate, modTime int32, loc *time.Location) int64 {
	if modTime == Unset {
		return Unset
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(1980+(modDate>>9)&0x7f),
		time.Month((modDate>>5)&0xf),
		int(modDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int((modTime>>11)&0x1f),
		int((modTime>>5)&0x3f),
		int((modTime&0x1f)<<1),
		0, // nanoseconds

		loc,
	).UnixMilli()
}

// EncodeDosDateTime packs the wall clock of t into MS-DOS date and time fields.
// Times before 1980 are clamped to 1980-01-01 00:00:00 and odd seconds are
// truncated.
func EncodeDosDateTime(t time.Time) (modDate, modTime uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	}
	modDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	modTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return modDate, modTime
}
