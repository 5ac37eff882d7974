package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/timeutil"
)

// PcapReplay replays recorded MJPEG-over-UDP camera traffic. Every UDP
// payload sent to Port is one JPEG frame of the configured Size.
type PcapReplay struct {
	Path string
	Port int // UDP destination port carrying frames; 0 accepts any port
	Size geom.Size
	// Speed scales the recorded inter-frame gaps. 1 replays in real time;
	// values <= 0 replay as fast as frames can be published.
	Speed float64
	// Loop restarts the file at EOF instead of holding the last frame.
	Loop  bool
	Clock timeutil.Clock
}

// Acquire opens the capture file and starts replay.
func (p *PcapReplay) Acquire(ctx context.Context) (Stream, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pcap %q: %v", ErrPermissionDenied, p.Path, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header %q: %w", p.Path, err)
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	monitoring.Logf("[capture] replaying %s (udp port %d, speed %.2f, loop %v)", p.Path, p.Port, p.Speed, p.Loop)

	return newLiveStream(p.Size, func(ctx context.Context, publish func(Frame)) {
		var seq uint64
		for {
			n, err := p.replay(ctx, r, clock, &seq, publish)
			if err != nil && !errors.Is(err, io.EOF) {
				if ctx.Err() == nil {
					monitoring.Logf("[capture] pcap replay stopped after %d frames: %v", n, err)
				}
				return
			}
			if !p.Loop || n == 0 {
				monitoring.Logf("[capture] pcap replay complete: %d frames", seq)
				<-ctx.Done()
				return
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				monitoring.Logf("[capture] pcap rewind failed: %v", err)
				return
			}
			if r, err = pcapgo.NewReader(f); err != nil {
				monitoring.Logf("[capture] pcap reopen failed: %v", err)
				return
			}
		}
	}, f.Close), nil
}

// replay publishes every frame in the file once and returns the number of
// frames published in this pass.
func (p *PcapReplay) replay(ctx context.Context, r *pcapgo.Reader, clock timeutil.Clock, seq *uint64, publish func(Frame)) (int, error) {
	var first time.Time
	started := clock.Now()
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		data, ci, err := r.ReadPacketData()
		if err != nil {
			return count, err
		}
		payload, ok := p.framePayload(data, r.LinkType())
		if !ok {
			continue
		}

		if p.Speed > 0 {
			if first.IsZero() {
				first = ci.Timestamp
			}
			due := time.Duration(float64(ci.Timestamp.Sub(first)) / p.Speed)
			if wait := due - clock.Since(started); wait > 0 {
				select {
				case <-ctx.Done():
					return count, ctx.Err()
				case <-clock.After(wait):
				}
			}
		}

		buf := make([]byte, len(payload))
		copy(buf, payload)
		publish(Frame{Seq: *seq, CapturedAt: ci.Timestamp, Size: p.Size, Format: FormatJPEG, Data: buf})
		*seq++
		count++
	}
}

func (p *PcapReplay) framePayload(data []byte, link layers.LinkType) ([]byte, bool) {
	packet := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}
	if p.Port != 0 && int(udp.DstPort) != p.Port {
		return nil, false
	}
	if len(udp.Payload) == 0 {
		return nil, false
	}
	return udp.Payload, true
}
