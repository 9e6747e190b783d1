package discord

import (
	"github.com/cockroachdb/errors"
	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	opusFrameSize   = opusSampleRate * opusFrameSizeMs / 1000 // 960 samples per channel
	opusFrameBytes  = opusFrameSize * opusChannels * 2        // 3840 bytes of s16le PCM
	opusMaxPacket   = 4000
)

// frameEncoder encodes one 20 ms PCM frame into an Opus packet.
type frameEncoder interface {
	encode(pcm []int16) ([]byte, error)
}

type opusEncoder struct {
	enc *gopus.Encoder
}

func newOpusEncoder(bitrateKbps int) (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus encoder")
	}
	if bitrateKbps > 0 {
		enc.SetBitrate(bitrateKbps * 1000)
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) encode(pcm []int16) ([]byte, error) {
	packet, err := e.enc.Encode(pcm, opusFrameSize, opusMaxPacket)
	if err != nil {
		return nil, errors.Wrap(err, "opus encode")
	}
	return packet, nil
}

// bytesToInt16s converts little-endian bytes to PCM samples.
func bytesToInt16s(b []byte, pcm []int16) []int16 {
	pcm = pcm[:0]
	for i := 0; i+1 < len(b); i += 2 {
		pcm = append(pcm, int16(b[i])|int16(b[i+1])<<8)
	}
	return pcm
}
