package dmrgps

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Build the burst a radio would send for an information block.  Parity
// and the slot type are left as zeros.
func burstPayload(block InformationBlock) []byte {
	var coded = embedInformationBlock(block)
	var payload = make([]byte, BURST_PAYLOAD_BYTES)

	var j = 0
	for n := 0; n < BURST_BITS; n++ {
		if n >= BURST_HALF_BITS && n < BURST_HALF_BITS+BURST_GAP_BITS {
			continue
		}
		if coded[j] != 0 {
			payload[n/8] |= 0x80 >> (n % 8)
		}
		j++
	}

	return payload
}

// Pad to whole blocks with the CRC at the end.
func packData(body []byte) []byte {
	var n = len(body) + DATA_CRC_BYTES
	var blocks = (n + INFO_BYTES - 1) / INFO_BYTES

	var out = append([]byte(nil), body...)
	out = append(out, make([]byte, blocks*INFO_BYTES-n)...)
	return append(out, 0xde, 0xad, 0xbe, 0xef)
}

// The frames of a complete data call carrying data.
func dataCall(stream uint32, src uint32, data []byte) []RawFrame {
	var count = len(data) / INFO_BYTES

	var header = headerFrame(stream, src)
	header.Payload = burstPayload(headerBlock(count))

	var frames = []RawFrame{header}

	for i := 0; i < count; i++ {
		var block InformationBlock
		copy(block[:], data[i*INFO_BYTES:])

		var f = dataFrame(stream, src, uint8(i+1))
		f.Payload = burstPayload(block)
		frames = append(frames, f)
	}

	return frames
}

type gatewayFixture struct {
	gateway  *Gateway
	profiles *ProfileStore
	uplink   *recordingUplink
	metrics  *Metrics
	clock    *time.Time
}

func newGatewayFixture(t *testing.T) gatewayFixture {
	t.Helper()

	var clock = testStart
	var fx = gatewayFixture{
		uplink:  &recordingUplink{},
		metrics: NewMetrics(),
		clock:   &clock,
	}

	fx.profiles, _ = newTestProfileStore(t, nil)
	require.NoError(t, fx.profiles.Load())

	var cfg = validConfig()
	cfg.DataID = testDataID

	fx.gateway = NewGateway(cfg, GatewayDeps{
		Logger:    testLogger(),
		Metrics:   fx.metrics,
		Profiles:  fx.profiles,
		Directory: testDirectory(t),
		Uplink:    fx.uplink,
		Now:       func() time.Time { return clock },
	})

	return fx
}

func (fx gatewayFixture) send(frames []RawFrame) {
	for _, f := range frames {
		fx.gateway.HandleFrame(f)
	}
}

func Test_BurstPayloadRoundTrip(t *testing.T) {
	var block = dataBlock(0x5a)

	var out, err = DecodeBurst(burstPayload(block))
	require.NoError(t, err)

	assert.Equal(t, block, out)
}

func Test_GatewayPosition(t *testing.T) {
	var fx = newGatewayFixture(t)

	fx.send(dataCall(0x1234, 3112345, packData([]byte(testRMC+"\r\n"))))

	assert.Equal(t, []string{
		"KD9XYZ-15>APHBL3,TCPIP*:/120000h3724.12N/12227.57W[090/005/Sent from DMR DMR ID: 3112345",
	}, fx.uplink.sent())

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.reports.WithLabelValues("fix")))
	assert.Equal(t, 0, fx.gateway.Assembler().Active())
}

func Test_GatewayMessageThenPosition(t *testing.T) {
	var fx = newGatewayFixture(t)

	var message = append(wideText("0,9099\n"), wideText("@SSID 9")...)
	fx.send(dataCall(1, 3112345, packData(message)))

	assert.Equal(t, "9", fx.profiles.GetOrDefault(3112345).SSID)
	assert.Empty(t, fx.uplink.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.commands.WithLabelValues("ssid")))

	fx.send(dataCall(2, 3112345, packData([]byte(testRMC))))

	var sent = fx.uplink.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "KD9XYZ-9>")
}

func Test_GatewayGridMessage(t *testing.T) {
	var fx = newGatewayFixture(t)

	fx.send(dataCall(1, 123, packData(wideText("@MH CM87wj"))))

	var sent = fx.uplink.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "N0CALL-15>")
}

func Test_GatewayUnknownRadio(t *testing.T) {
	var fx = newGatewayFixture(t)

	fx.send(dataCall(1, 7654321, packData([]byte(testRMC))))

	var sent = fx.uplink.sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "7654321-15>"), sent[0])
}

func Test_GatewayRejectedReport(t *testing.T) {
	var fx = newGatewayFixture(t)

	// A hand edited profile file can still hold a bad icon.
	fx.profiles.profiles[3112345] = UserProfile{Icon: "ab"}

	fx.send(dataCall(1, 3112345, packData([]byte(testRMC))))

	assert.Empty(t, fx.uplink.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.reports.WithLabelValues("rejected")))
}

// A bad icon is refused at the command, so later fixes still go out.
func Test_GatewayBadIconKeepsReporting(t *testing.T) {
	var fx = newGatewayFixture(t)

	fx.send(dataCall(1, 123, packData(wideText("@ICON ab"))))
	assert.Equal(t, UserProfile{}, fx.profiles.GetOrDefault(123))

	fx.send(dataCall(2, 123, packData([]byte(testRMC))))

	var sent = fx.uplink.sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "N0CALL-15>"), sent[0])
}

func Test_GatewayBadSentence(t *testing.T) {
	var fx = newGatewayFixture(t)

	fx.send(dataCall(1, 3112345, packData([]byte("$GPRMC,123519,V,,,,,,,230394,,"))))

	assert.Empty(t, fx.uplink.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.reports.WithLabelValues("unparsed")))
}

func Test_GatewayIgnoresOtherTraffic(t *testing.T) {
	var fx = newGatewayFixture(t)

	var frames = dataCall(1, 3112345, packData([]byte(testRMC)))
	for i := range frames {
		frames[i].DestID = 1234
	}
	fx.send(frames)

	var voice = headerFrame(2, 3112345)
	voice.FrameType = FrameTypeVoiceSync
	voice.DataType = 0
	fx.gateway.HandleFrame(voice)

	assert.Empty(t, fx.uplink.sent())
	assert.Equal(t, float64(len(frames)+1), testutil.ToFloat64(fx.metrics.frames.WithLabelValues("ignored")))
	assert.Equal(t, 0, fx.gateway.Assembler().Active())
}

func Test_GatewayShortPayload(t *testing.T) {
	var fx = newGatewayFixture(t)

	var f = headerFrame(1, 3112345)
	f.Payload = make([]byte, 10)
	fx.gateway.HandleFrame(f)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.frames.WithLabelValues("rejected")))
	assert.Equal(t, 0, fx.gateway.Assembler().Active())
}

func Test_GatewayExpire(t *testing.T) {
	var fx = newGatewayFixture(t)

	var frames = dataCall(1, 3112345, packData([]byte(testRMC)))
	fx.send(frames[:2])
	assert.Equal(t, 1, fx.gateway.Assembler().Active())

	*fx.clock = testStart.Add(time.Minute)
	assert.Equal(t, 1, fx.gateway.Expire())

	fx.send(frames[2:])
	assert.Empty(t, fx.uplink.sent())
}
