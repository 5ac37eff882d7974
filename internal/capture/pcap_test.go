package capture

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lense/internal/geom"
)

// writeTestPcap writes one UDP packet per payload, 100ms apart, to dstPort.
// A packet to otherPort is interleaved to exercise port filtering.
func writeTestPcap(t *testing.T, dstPort, otherPort int, payloads ...[]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "camera.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	write := func(port int, payload []byte, at time.Time) {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 1, 20),
			DstIP:    net.IPv4(192, 168, 1, 10),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
		data := buf.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     at,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}

	for i, p := range payloads {
		at := start.Add(time.Duration(i) * 100 * time.Millisecond)
		write(dstPort, p, at)
		write(otherPort, []byte("not a frame"), at.Add(time.Millisecond))
	}
	return path
}

func TestPcapReplay_PublishesFramesOnPort(t *testing.T) {
	path := writeTestPcap(t, 5600, 5601, []byte("jpeg-0"), []byte("jpeg-1"), []byte("jpeg-2"))

	src := &PcapReplay{Path: path, Port: 5600, Size: geom.Size{Width: 640, Height: 480}}
	s, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer s.Close()

	waitReady(t, s)
	require.Eventually(t, func() bool {
		f, _ := s.Latest()
		return f.Seq == 2
	}, 2*time.Second, time.Millisecond)

	f, _ := s.Latest()
	assert.Equal(t, []byte("jpeg-2"), f.Data)
	assert.Equal(t, FormatJPEG, f.Format)
	assert.Equal(t, geom.Size{Width: 640, Height: 480}, f.Size)

	// without Loop the last frame is held
	time.Sleep(20 * time.Millisecond)
	f, _ = s.Latest()
	assert.Equal(t, uint64(2), f.Seq)
}

func TestPcapReplay_Loop(t *testing.T) {
	path := writeTestPcap(t, 5600, 5601, []byte("a"), []byte("b"))

	src := &PcapReplay{Path: path, Port: 5600, Size: geom.Size{Width: 2, Height: 2}, Loop: true}
	s, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		f, _ := s.Latest()
		return f.Seq >= 4
	}, 2*time.Second, time.Millisecond)
}

func TestPcapReplay_MissingFile(t *testing.T) {
	src := &PcapReplay{Path: filepath.Join(t.TempDir(), "nope.pcap")}
	_, err := src.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestPcapReplay_NotAPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not pcap"), 0644))

	_, err := (&PcapReplay{Path: path}).Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}
