package dmrgps

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatter() *Formatter {
	return &Formatter{
		Config: DefaultConfig().ReportConfig(),
		Now:    func() time.Time { return testStart },
	}
}

func Test_FormatFix(t *testing.T) {
	var fix, err = ParseFix(testRMC, testStart)
	require.NoError(t, err)

	var report string
	report, err = testFormatter().FormatFix(Station{Call: "N0CALL", RadioID: 3112345}, fix)
	require.NoError(t, err)

	assert.Equal(t, "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[090/005/Sent from DMR DMR ID: 3112345", report)

	var p ParsedReport
	p, err = ValidateReport(report)
	require.NoError(t, err)

	assert.Equal(t, "N0CALL-15", p.Source)
	assert.Equal(t, "APHBL3", p.Dest)
	assert.Equal(t, []string{"TCPIP*"}, p.Path)
	assert.Equal(t, "120000h", p.Timestamp)
	assert.InDelta(t, fix.Latitude, p.Latitude, 0.0001)
	assert.InDelta(t, fix.Longitude, p.Longitude, 0.0001)
	assert.Equal(t, 90, p.Course)
	assert.Equal(t, 5, p.Speed)
}

func Test_FormatFixProfile(t *testing.T) {
	var st = Station{
		Call:    "G4ABC",
		RadioID: 2350001,
		Profile: UserProfile{SSID: "9", Icon: "/>", Comment: "mobile"},
	}

	var report, err = testFormatter().FormatFix(st, StructuredFix{Latitude: -33.5, Longitude: 151.25, Course: 359.6, Speed: 1500})
	require.NoError(t, err)

	assert.Equal(t, "G4ABC-9>APHBL3,TCPIP*:/120000h3330.00S/15115.00E>360/999/mobile", report)
}

func Test_FormatFixNotNumeric(t *testing.T) {
	var _, err = testFormatter().FormatFix(Station{Call: "N0CALL"}, StructuredFix{Latitude: math.NaN()})
	assert.ErrorIs(t, err, ErrValidation)
}

// Radios not in the directory go out under their number.
func Test_FormatFixUnknownRadio(t *testing.T) {
	var report, err = testFormatter().FormatFix(Station{Call: "3112345", RadioID: 3112345}, StructuredFix{Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report, "3112345-15>APHBL3,TCPIP*:/120000h"), report)
}

func Test_FormatGrid(t *testing.T) {
	var lat, lon, err = GridSquareToLatLon("CM87wj")
	require.NoError(t, err)

	var report string
	report, err = testFormatter().FormatGrid(Station{Call: "N0CALL", RadioID: 123, Profile: UserProfile{Comment: "at home"}}, lat, lon)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report, "N0CALL-15>APHBL3,TCPIP*:/120000h37"), report)
	assert.True(t, strings.HasSuffix(report, "  W[/at home"), report)

	var p ParsedReport
	p, err = ValidateReport(report)
	require.NoError(t, err)

	assert.InDelta(t, lat, p.Latitude, 1.0/60)
	assert.InDelta(t, lon, p.Longitude, 1.0/60)
	assert.Equal(t, -1, p.Course)
	assert.Equal(t, "/at home", p.Comment)
}

func Test_Decorations(t *testing.T) {
	var f = testFormatter()

	tests := []struct {
		name    string
		profile UserProfile
		ssid    string
		table   byte
		symbol  byte
		comment string
	}{
		{"defaults", UserProfile{}, "15", '/', '[', "Sent from DMR DMR ID: 42"},
		{"profile SSID", UserProfile{SSID: "7"}, "7", '/', '[', "Sent from DMR DMR ID: 42"},
		{"profile icon", UserProfile{Icon: "\\k"}, "15", '\\', 'k', "Sent from DMR DMR ID: 42"},
		{"icon needs two characters", UserProfile{Icon: "/>x"}, "15", '/', '[', "Sent from DMR DMR ID: 42"},
		{"profile comment", UserProfile{Comment: "hi"}, "15", '/', '[', "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ssid, table, symbol, comment = f.Decorations(Station{Call: "N0CALL", RadioID: 42, Profile: tt.profile})

			assert.Equal(t, tt.ssid, ssid)
			assert.Equal(t, tt.table, table)
			assert.Equal(t, tt.symbol, symbol)
			assert.Equal(t, tt.comment, comment)
		})
	}
}

func Test_ValidateReportAccepts(t *testing.T) {
	tests := []string{
		"N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[090/005/comment",
		"N0CALL>APHBL3:!3724.12N/12227.57W[",
		"N0CALL-AB>APHBL3,WIDE1-1,WIDE2-2:=3724.  N\\12227.  W>",
		"N0CALL-9>APHBL3-1,TCPIP*:@092345z3724.12S/12227.57E-",
		"N0CALL-9>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[360/000",
		"3112345-9>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[",
		"N0CALL-16>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[",
		"VK2ABC123>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[",
	}

	for _, report := range tests {
		var _, err = ValidateReport(report)
		assert.NoError(t, err, report)
	}
}

func Test_ValidateReportRejects(t *testing.T) {
	const good = "/120000h3724.12N/12227.57W["

	tests := []struct {
		name   string
		report string
	}{
		{"too long", "N0CALL-15>APHBL3,TCPIP*:" + good + strings.Repeat("x", IGATE_MAX_MSG)},
		{"control character", "N0CALL-15>APHBL3,TCPIP*:" + good + "\r"},
		{"no information field", "N0CALL-15>APHBL3,TCPIP*"},
		{"no destination", "N0CALL-15:" + good},
		{"lower case source", "n0call-15>APHBL3,TCPIP*:" + good},
		{"source too long", "N0CALLXXXX>APHBL3,TCPIP*:" + good},
		{"SSID too long", "N0CALL-123>APHBL3,TCPIP*:" + good},
		{"empty SSID", "N0CALL->APHBL3,TCPIP*:" + good},
		{"bad destination", "N0CALL-15>aphbl3,TCPIP*:" + good},
		{"bad path", "N0CALL-15>APHBL3,TCPIP**:" + good},
		{"empty information", "N0CALL-15>APHBL3,TCPIP*:"},
		{"not a position", "N0CALL-15>APHBL3,TCPIP*:>status"},
		{"bad timestamp", "N0CALL-15>APHBL3,TCPIP*:/12000Xh3724.12N/12227.57W["},
		{"time of day out of range", "N0CALL-15>APHBL3,TCPIP*:/250000h3724.12N/12227.57W["},
		{"short position", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/12227"},
		{"latitude over 90", "N0CALL-15>APHBL3,TCPIP*:/120000h9100.00N/12227.57W["},
		{"minutes over 60", "N0CALL-15>APHBL3,TCPIP*:/120000h3760.00N/12227.57W["},
		{"bad latitude hemisphere", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12X/12227.57W["},
		{"blank inside minutes", "N0CALL-15>APHBL3,TCPIP*:/120000h37 4.12N/12227.57W["},
		{"bad symbol table", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N|12227.57W["},
		{"longitude over 180", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/18100.00W["},
		{"bad longitude hemisphere", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/12227.57N["},
		{"course over 360", "N0CALL-15>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[400/005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var _, err = ValidateReport(tt.report)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
