package rtc

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const frameDuration = 20 * time.Millisecond

// Opus TOC byte plus padding for a single silent 20ms frame.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

// NewLocalAudio creates the Opus track shared by every link of a session.
func NewLocalAudio(streamID string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		streamID,
	)
}

// PlaySilence keeps the audio track flowing until ctx is done.
func PlaySilence(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: silentOpusFrame, Duration: frameDuration}); err != nil {
				return err
			}
		}
	}
}
