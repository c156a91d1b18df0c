package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Build APRS position reports for radios, and check them
 *		before they go anywhere.
 *
 * Description:	A report looks like
 *
 *		CALL-SSID>APHBL3,TCPIP*:/HHMMSSh DDMM.mmN/DDDMM.mmW[CCC/SSS/comment
 *
 *		Position with timestamp, no messaging.  The time is when
 *		we relay it, UTC.  The icon comes from the radio's
 *		profile, or the configured default.
 *
 *		Every report is parsed back with ValidateReport and
 *		dropped if that fails.  APRS-IS doesn't like junk and
 *		neither do the people reading it.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/lestrrat-go/strftime"
)

// "All 'packets' sent to APRS-IS must be in the TNC2 format terminated
// by a carriage return, line feed sequence. No line may exceed 512 bytes
// including the CR/LF sequence."
const IGATE_MAX_MSG = 512

const APRS_TIMESTAMP_FORMAT = "%H%M%Sh"

// Ambiguity used for positions worked out from a grid locator.
// Hundredths of a minute would be pretending.
const GRID_AMBIGUITY = 2

type ReportConfig struct {
	ToCall      string // Destination, identifies the software.
	Path        string // Usually TCPIP*
	SSID        string // Used when the profile has none.
	Comment     string // Default comment, followed by the radio id.
	SymbolTable byte
	Symbol      byte
}

type Formatter struct {
	Config ReportConfig
	Now    func() time.Time // time.Now if nil
}

// Station is who a report is about.
type Station struct {
	Call    string // Callsign from the subscriber directory.
	RadioID uint32
	Profile UserProfile
}

func (f *Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

/*------------------------------------------------------------------
 *
 * Name:        FormatFix
 *
 * Purpose:     Position report with course and speed from a GPS fix.
 *
 * Returns:	The report, already validated.
 *
 * Errors:	ErrValidation if the position isn't numeric or the
 *		result doesn't parse.
 *
 *----------------------------------------------------------------*/

func (f *Formatter) FormatFix(st Station, fix StructuredFix) (string, error) {
	if !fix.IsNumeric() {
		return "", fmt.Errorf("%w: position is not numeric", ErrValidation)
	}

	var ext = fmt.Sprintf("%03d/%03d/", clampInt(math.Round(fix.Course), 0, 360), clampInt(math.Round(fix.Speed), 0, 999))

	return f.format(st, LatitudeToStr(fix.Latitude, 0), LongitudeToStr(fix.Longitude, 0), ext)
}

// FormatGrid is a position report for a location worked out from a
// grid locator.  No course or speed, just the separator before the comment.
func (f *Formatter) FormatGrid(st Station, lat, lon float64) (string, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", fmt.Errorf("%w: position is not numeric", ErrValidation)
	}

	return f.format(st, LatitudeToStr(lat, GRID_AMBIGUITY), LongitudeToStr(lon, GRID_AMBIGUITY), "/")
}

func (f *Formatter) format(st Station, slat, slon, ext string) (string, error) {
	var ssid, table, symbol, comment = f.Decorations(st)

	var timestamp, err = strftime.Format(APRS_TIMESTAMP_FORMAT, f.now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: timestamp: %w", ErrValidation, err)
	}

	var report = fmt.Sprintf("%s-%s>%s,%s:/%s%s%c%s%c%s%s",
		st.Call, ssid, f.Config.ToCall, f.Config.Path,
		timestamp, slat, table, slon, symbol, ext, comment)

	if _, err := ValidateReport(report); err != nil {
		return "", err
	}

	return report, nil
}

// Decorations picks the SSID, icon and comment for a station, from its
// profile where set and from the configuration where not.
func (f *Formatter) Decorations(st Station) (string, byte, byte, string) {
	var ssid = st.Profile.SSID
	if ssid == "" {
		ssid = f.Config.SSID
	}

	var table, symbol = f.Config.SymbolTable, f.Config.Symbol
	if len(st.Profile.Icon) == 2 {
		table, symbol = st.Profile.Icon[0], st.Profile.Icon[1]
	}

	var comment = st.Profile.Comment
	if comment == "" {
		comment = fmt.Sprintf("%s DMR ID: %d", f.Config.Comment, st.RadioID)
	}

	return ssid, table, symbol, comment
}

func clampInt(x float64, lo, hi int) int {
	return int(math.Max(float64(lo), math.Min(float64(hi), x)))
}

/*------------------------------------------------------------------
 *
 * Name:        ValidateReport
 *
 * Purpose:     Parse a report the way an APRS-IS server or client would.
 *
 * Description:	Only the forms we generate are accepted: TNC2 header,
 *		then a position with or without timestamp, in the
 *		human readable form, optionally with course/speed.
 *
 *----------------------------------------------------------------*/

// ParsedReport is what ValidateReport found.
type ParsedReport struct {
	Source      string
	Dest        string
	Path        []string
	Timestamp   string // HHMMSSh, DDHHMMz or empty
	Latitude    float64
	Longitude   float64
	SymbolTable byte
	Symbol      byte
	Course      int // -1 if absent
	Speed       int // -1 if absent
	Comment     string
}

var (
	// APRS-IS takes longer callsigns than AX.25 does, and any SSID.
	sourceCallRE = regexp.MustCompile(`^[A-Z0-9]{1,9}(-[A-Z0-9]{1,2})?$`)
	destCallRE   = regexp.MustCompile(`^[A-Z0-9]{1,6}(-[0-9]{1,2})?$`)
	pathCallRE   = regexp.MustCompile(`^[A-Za-z0-9-]{1,9}\*?$`)
	cseSpdRE     = regexp.MustCompile(`^[0-9]{3}/[0-9]{3}`)
)

func ValidateReport(report string) (ParsedReport, error) {
	var p = ParsedReport{Course: -1, Speed: -1}

	var bad = func(format string, a ...any) (ParsedReport, error) {
		return ParsedReport{}, fmt.Errorf("%w: %s: %q", ErrValidation, fmt.Sprintf(format, a...), report)
	}

	if len(report)+2 > IGATE_MAX_MSG {
		return bad("longer than %d bytes", IGATE_MAX_MSG-2)
	}

	for _, r := range report {
		if r < 0x20 || r == 0x7f || !unicode.IsPrint(r) && r < 0x80 {
			return bad("control character 0x%02x", r)
		}
	}

	var header, info, found = strings.Cut(report, ":")
	if !found {
		return bad("no ':' between header and information")
	}

	var source, rest, hasDest = strings.Cut(header, ">")
	if !hasDest {
		return bad("no '>' after source")
	}

	if !sourceCallRE.MatchString(source) {
		return bad("invalid source callsign %q", source)
	}
	p.Source = source

	var via = strings.Split(rest, ",")
	if !destCallRE.MatchString(via[0]) {
		return bad("invalid destination %q", via[0])
	}
	p.Dest = via[0]

	for _, hop := range via[1:] {
		if !pathCallRE.MatchString(hop) {
			return bad("invalid path element %q", hop)
		}
	}
	p.Path = via[1:]

	if len(info) == 0 {
		return bad("empty information field")
	}

	var dti = info[0]
	info = info[1:]

	switch dti {
	case '!', '=':
	case '/', '@':
		if len(info) < 7 || !isDigits(info[:6]) || (info[6] != 'h' && info[6] != 'z' && info[6] != '/') {
			return bad("timestamp must be 6 digits followed by z, h, or /")
		}
		if info[6] == 'h' && !validHMS(info[:6]) {
			return bad("timestamp %q is not a time of day", info[:7])
		}
		p.Timestamp = info[:7]
		info = info[7:]
	default:
		return bad("not a position report, data type '%c'", dti)
	}

	if len(info) < 19 {
		return bad("position too short")
	}

	var err error
	if p.Latitude, err = parseLatitude(info[0:8]); err != nil {
		return bad("%s", err)
	}

	p.SymbolTable = info[8]
	if !validSymbolTable(p.SymbolTable) {
		return bad("invalid symbol table '%c'", p.SymbolTable)
	}

	if p.Longitude, err = parseLongitude(info[9:18]); err != nil {
		return bad("%s", err)
	}

	p.Symbol = info[18]
	if p.Symbol < '!' || p.Symbol > '~' {
		return bad("invalid symbol code 0x%02x", p.Symbol)
	}

	info = info[19:]

	if cseSpdRE.MatchString(info) {
		p.Course, _ = strconv.Atoi(info[0:3])
		p.Speed, _ = strconv.Atoi(info[4:7])
		if p.Course > 360 {
			return bad("course %d greater than 360", p.Course)
		}
		info = info[7:]
	}

	p.Comment = info

	return p, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func validHMS(s string) bool {
	var h, _ = strconv.Atoi(s[0:2])
	var m, _ = strconv.Atoi(s[2:4])
	var sec, _ = strconv.Atoi(s[4:6])
	return h < 24 && m < 60 && sec < 60
}

// Primary, alternate, or an overlay character.
func validSymbolTable(c byte) bool {
	return c == '/' || c == '\\' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ddmm.hh[NS], with trailing digits possibly blanked for ambiguity.
func parseLatitude(s string) (float64, error) {
	var deg, err = parseDegMin(s[:7], 2)
	if err != nil {
		return 0, fmt.Errorf("latitude %q: %w", s, err)
	}
	if deg > 90 {
		return 0, fmt.Errorf("latitude %q greater than 90", s)
	}

	switch s[7] {
	case 'N':
		return deg, nil
	case 'S':
		return -deg, nil
	}

	return 0, fmt.Errorf("latitude %q: hemisphere must be N or S", s)
}

// dddmm.hh[EW].
func parseLongitude(s string) (float64, error) {
	var deg, err = parseDegMin(s[:8], 3)
	if err != nil {
		return 0, fmt.Errorf("longitude %q: %w", s, err)
	}
	if deg > 180 {
		return 0, fmt.Errorf("longitude %q greater than 180", s)
	}

	switch s[8] {
	case 'E':
		return deg, nil
	case 'W':
		return -deg, nil
	}

	return 0, fmt.Errorf("longitude %q: hemisphere must be E or W", s)
}

func parseDegMin(s string, degDigits int) (float64, error) {
	if s[degDigits+2] != '.' {
		return 0, fmt.Errorf("expected '.' at position %d", degDigits+2)
	}

	if !isDigits(s[:degDigits]) {
		return 0, fmt.Errorf("degrees must be digits")
	}

	// Blanks are allowed only at the end, for ambiguity.
	var digits = s[degDigits:degDigits+2] + s[degDigits+3:]
	var blanked = false
	var minutes = ""
	for i := 0; i < len(digits); i++ {
		switch {
		case digits[i] == ' ':
			blanked = true
			minutes += "0"
		case digits[i] >= '0' && digits[i] <= '9' && !blanked:
			minutes += digits[i : i+1]
		default:
			return 0, fmt.Errorf("invalid character '%c' in minutes", digits[i])
		}
	}

	var deg, _ = strconv.Atoi(s[:degDigits])
	var hmin, _ = strconv.Atoi(minutes)
	if hmin >= 6000 {
		return 0, fmt.Errorf("minutes not less than 60")
	}

	return float64(deg) + float64(hmin)/6000., nil
}
