package dmrgps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ReadSubscribersWithHeading(t *testing.T) {
	const users = "\ufeffRADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY\n" +
		"3112345,n0call,Joe,,Springfield,Illinois,United States\n" +
		"2350001,G4ABC,\"Smith, John\",,London,,United Kingdom\n"

	var d, err = ReadSubscribers(strings.NewReader(users))
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, "N0CALL", d.Callsign(3112345))
	assert.Equal(t, "G4ABC", d.Callsign(2350001))
	assert.True(t, d.Known(2350001))
}

func Test_ReadSubscribersColumnOrder(t *testing.T) {
	var d, err = ReadSubscribers(strings.NewReader("CALLSIGN,NAME,RADIO_ID\nKD9XYZ,Bob,3112346\n"))
	require.NoError(t, err)

	assert.Equal(t, "KD9XYZ", d.Callsign(3112346))
}

func Test_ReadSubscribersNoHeading(t *testing.T) {
	var d, err = ReadSubscribers(strings.NewReader("123,N0CALL\nnot a number,X\n456,\n789,W1AW,extra\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, "N0CALL", d.Callsign(123))
	assert.Equal(t, "W1AW", d.Callsign(789))
	assert.False(t, d.Known(456))
}

func Test_SubscriberUnknown(t *testing.T) {
	var d, err = ReadSubscribers(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "3112345", d.Callsign(3112345))
	assert.False(t, d.Known(3112345))

	var none *SubscriberDirectory
	assert.Equal(t, "42", none.Callsign(42))
	assert.Equal(t, 0, none.Len())
}

func Test_LoadSubscribers(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "user.csv")
	require.NoError(t, os.WriteFile(path, []byte("RADIO_ID,CALLSIGN\n123,N0CALL\n"), 0o600))

	var d, err = LoadSubscribers(path)
	require.NoError(t, err)
	assert.Equal(t, "N0CALL", d.Callsign(123))

	_, err = LoadSubscribers(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
