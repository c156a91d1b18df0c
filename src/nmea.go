package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Turn the $GPRMC sentence a radio sends into a position fix.
 *
 * Description:	The AT-D878 and friends send
 *
 *		$GPRMC,hhmmss.ss,A,ddmm.mmmm,N,dddmm.mmmm,W,knots,course,ddmmyy,,,A*cs
 *
 *		followed by padding.  The checksum isn't worth trusting
 *		after a trip through a data call with no error correction
 *		on our side, so it is recomputed rather than checked.
 *		Field syntax is still checked, and that is what catches
 *		garbage.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// StructuredFix is a position taken from one GPS sentence.
type StructuredFix struct {
	Latitude  float64   // Degrees, negative for south.
	Longitude float64   // Degrees, negative for west.
	Course    float64   // Degrees true.
	Speed     float64   // Knots.
	Time      time.Time // UTC, from the sentence when it has one.
}

func (f StructuredFix) LatHemisphere() byte {
	if f.Latitude < 0 {
		return 'S'
	}
	return 'N'
}

func (f StructuredFix) LonHemisphere() byte {
	if f.Longitude < 0 {
		return 'W'
	}
	return 'E'
}

// IsNumeric is false if either coordinate is not a real number.
func (f StructuredFix) IsNumeric() bool {
	return !math.IsNaN(f.Latitude) && !math.IsInf(f.Latitude, 0) &&
		!math.IsNaN(f.Longitude) && !math.IsInf(f.Longitude, 0)
}

// IsolateSentence returns the GPS sentence at the start of text, without
// checksum and without whatever padding follows it.
func IsolateSentence(text string) string {
	var end = len(text)

	for i := 0; i < len(text); i++ {
		if text[i] == '*' || text[i] < 0x20 || text[i] > 0x7e {
			end = i
			break
		}
	}

	return text[:end]
}

// NMEAChecksum is the XOR of everything between $ and *.
func NMEAChecksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		if i == 0 && body[i] == '$' {
			continue
		}
		cs ^= body[i]
	}

	return cs
}

/*------------------------------------------------------------------
 *
 * Name:        ParseFix
 *
 * Purpose:     Parse the $GPRMC sentence at the start of text.
 *
 * Inputs:      text	- Starts with "$GPRMC".  Anything after the
 *			  sentence is ignored.
 *		now	- Used for the fix time if the sentence has none.
 *
 * Errors:	ErrParse if the fields are malformed or the receiver
 *		says it has no fix.
 *
 *----------------------------------------------------------------*/

func ParseFix(text string, now time.Time) (StructuredFix, error) {
	var body = IsolateSentence(text)
	var sentence = fmt.Sprintf("%s*%02X", body, NMEAChecksum(body))

	var s, err = nmea.Parse(sentence)
	if err != nil {
		return StructuredFix{}, fmt.Errorf("%w: %q: %w", ErrParse, body, err)
	}

	var rmc, ok = s.(nmea.RMC)
	if !ok {
		return StructuredFix{}, fmt.Errorf("%w: %q is %s, not RMC", ErrParse, body, s.DataType())
	}

	if rmc.Validity != nmea.ValidRMC {
		return StructuredFix{}, fmt.Errorf("%w: receiver reports no fix, status %q", ErrParse, rmc.Validity)
	}

	var fix = StructuredFix{
		Latitude:  rmc.Latitude,
		Longitude: rmc.Longitude,
		Course:    rmc.Course,
		Speed:     rmc.Speed,
		Time:      fixTime(rmc, now),
	}

	if !fix.IsNumeric() || math.Abs(fix.Latitude) > 90 || math.Abs(fix.Longitude) > 180 {
		return StructuredFix{}, fmt.Errorf("%w: position out of range %f %f", ErrParse, fix.Latitude, fix.Longitude)
	}

	return fix, nil
}

func fixTime(rmc nmea.RMC, now time.Time) time.Time {
	now = now.UTC()

	if !rmc.Time.Valid {
		return now
	}

	var year, month, day = now.Date()
	if rmc.Date.Valid {
		year, month, day = 2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD
		if rmc.Date.YY >= 80 {
			year -= 100
		}
	}

	return time.Date(year, month, day, rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second,
		rmc.Time.Millisecond*int(time.Millisecond), time.UTC)
}

// Summary is a one line description for the log.
func (f StructuredFix) Summary() string {
	return fmt.Sprintf("%.5f%c %.5f%c course %.0f speed %.1f kn",
		math.Abs(f.Latitude), f.LatHemisphere(), math.Abs(f.Longitude), f.LonHemisphere(), f.Course, f.Speed)
}

