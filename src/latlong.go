package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Latitude and longitude in the forms APRS wants,
 *		and Maidenhead locators.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

/*------------------------------------------------------------------
 *
 * Name:        LatitudeToStr
 *
 * Purpose:     Convert numeric latitude to string for transmission.
 *
 * Inputs:      dlat		- Floating point degrees.
 * 		ambiguity	- If 1, 2, 3, or 4, blank out that many trailing digits.
 *
 * Returns:	String in format ddmm.mm[NS]
 *		Always exactly 8 characters, with leading zeros, because
 *		the APRS position report has fixed width fields.
 *
 *----------------------------------------------------------------*/

func LatitudeToStr(dlat float64, ambiguity int) string {
	dlat = math.Max(-90, math.Min(90, dlat))

	var hemi byte = 'N'
	if dlat < 0 {
		dlat = -dlat
		hemi = 'S'
	}

	var ideg, smin = degreesMinutes(dlat)

	var slat = []byte(fmt.Sprintf("%02d%s%c", ideg, smin, hemi))

	if ambiguity >= 1 {
		slat[6] = ' '
		if ambiguity >= 2 {
			slat[5] = ' '
			if ambiguity >= 3 {
				slat[3] = ' '
				if ambiguity >= 4 {
					slat[2] = ' '
				}
			}
		}
	}

	return string(slat)
}

// LongitudeToStr is the same for longitude, dddmm.mm[EW], 9 characters.
func LongitudeToStr(dlong float64, ambiguity int) string {
	dlong = math.Max(-180, math.Min(180, dlong))

	var hemi byte = 'E'
	if dlong < 0 {
		dlong = -dlong
		hemi = 'W'
	}

	var ideg, smin = degreesMinutes(dlong)

	var slong = []byte(fmt.Sprintf("%03d%s%c", ideg, smin, hemi))

	// Ambiguity in latitude applies to longitude anyway, but blanking
	// these too makes it clearer.
	if ambiguity >= 1 {
		slong[7] = ' '
		if ambiguity >= 2 {
			slong[6] = ' '
			if ambiguity >= 3 {
				slong[4] = ' '
				if ambiguity >= 4 {
					slong[3] = ' '
				}
			}
		}
	}

	return string(slong)
}

// Whole degrees and "mm.mm" minutes of a non-negative angle.
func degreesMinutes(d float64) (int, string) {
	var ideg = int(d)
	var dmin = (d - float64(ideg)) * 60.

	var smin = fmt.Sprintf("%05.2f", dmin)
	/* Due to roundoff, 59.9999 could come out as "60.00" */
	if smin[0] == '6' {
		smin = "00.00"
		ideg++
	}

	return ideg, smin
}

/*------------------------------------------------------------------
 *
 * Name:	GridSquareToLatLon
 *
 * Purpose:	Convert Maidenhead locator to latitude and longitude.
 *
 * Inputs:	maidenhead	- 2, 4, 6, 8, 10, or 12 character grid square locator.
 *
 * Returns:	Latitude and longitude of the centre of the square.
 *
 *		For 8 character form, each latitude unit is 0.25 minute,
 *		around 460 m.
 *
 *------------------------------------------------------------------*/

const MH_MIN_PAIR = 1
const MH_MAX_PAIR = 6
const MH_UNITS = (18 * 10 * 24 * 10 * 24 * 10 * 2)

type mhPair struct {
	position string
	minCh    byte
	maxCh    byte
	value    int
}

var mhPairs = []mhPair{
	{"first", 'A', 'R', 10 * 24 * 10 * 24 * 10 * 2},
	{"second", '0', '9', 24 * 10 * 24 * 10 * 2},
	{"third", 'A', 'X', 10 * 24 * 10 * 2},
	{"fourth", '0', '9', 24 * 10 * 2},
	{"fifth", 'A', 'X', 10 * 2},
	{"sixth", '0', '9', 2},
} // Even so we can get center of square.

var ErrGridSquare = errors.New("bad Maidenhead locator")

func GridSquareToLatLon(maidenhead string) (float64, float64, error) {
	var np = len(maidenhead) / 2 /* Number of pairs of characters. */

	if len(maidenhead)%2 != 0 || np < MH_MIN_PAIR || np > MH_MAX_PAIR {
		return 0, 0, fmt.Errorf("%w: %q must be 1 to %d pairs of characters", ErrGridSquare, maidenhead, MH_MAX_PAIR)
	}

	var mh = strings.ToUpper(maidenhead)

	var ilat, ilon int
	for n := 0; n < np; n++ {
		var p = mhPairs[n]
		if mh[2*n] < p.minCh || mh[2*n] > p.maxCh || mh[2*n+1] < p.minCh || mh[2*n+1] > p.maxCh {
			return 0, 0, fmt.Errorf("%w: the %s pair of characters in %q must be in range of %c thru %c",
				ErrGridSquare, p.position, maidenhead, p.minCh, p.maxCh)
		}

		ilon += int(mh[2*n]-p.minCh) * p.value
		ilat += int(mh[2*n+1]-p.minCh) * p.value

		if n == np-1 { // If last pair, take center of square.
			ilon += p.value / 2
			ilat += p.value / 2
		}
	}

	var dlat = float64(ilat)/MH_UNITS*180. - 90.
	var dlon = float64(ilon)/MH_UNITS*360. - 180.

	return dlat, dlon, nil
}

// MGRS gives the military grid reference of a position, for the log.
// Empty if there isn't one, e.g. near the poles.
func MGRS(lat, lon float64) string {
	var latlng = s2.LatLng{
		Lat: s1.Angle(lat * math.Pi / 180),
		Lng: s1.Angle(lon * math.Pi / 180),
	}

	var mgrs, err = coordconv.DefaultMGRSConverter.ConvertFromGeodetic(latlng, 5)
	if err != nil {
		return ""
	}

	return fmt.Sprint(mgrs)
}
