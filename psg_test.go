package main

import "testing"

// writeTonePeriod drives the two-byte latch protocol for a tone channel's
// 10-bit period register (channels 0/1/2 latch at 0/2/4).
func writeTonePeriod(p *PSG, channelLatch byte, period uint16) {
	p.Write(0x80 | channelLatch<<4 | byte(period&0x0F))
	p.Write(byte(period>>4) & 0x3F)
}

// TestPSGTonePeriodLatching checks that the low nibble (first byte, bit7=1)
// and high bits (second byte, bit7=0) combine into the 10-bit period.
func TestPSGTonePeriodLatching(t *testing.T) {
	p := NewPSG(3579545, 44100)
	writeTonePeriod(p, 0, 0x1AB)

	if p.tone[0].period != 0x1AB {
		t.Fatalf("tone[0].period = 0x%03X, want 0x1AB", p.tone[0].period)
	}
}

// TestPSGVolumeLatch checks that a volume latch byte sets the channel's
// 4-bit attenuation directly (no two-byte split, unlike period).
func TestPSGVolumeLatch(t *testing.T) {
	p := NewPSG(3579545, 44100)
	p.Write(0x90 | 0x0A) // latch channel 0 volume = 0x0A

	if p.tone[0].volume != 0x0A {
		t.Fatalf("tone[0].volume = 0x%02X, want 0x0A", p.tone[0].volume)
	}
}

// TestPSGMaxAttenuationIsSilent checks that volume 0xF (the table's last
// entry) produces a silent sample regardless of tone/noise activity.
func TestPSGMaxAttenuationIsSilent(t *testing.T) {
	p := NewPSG(3579545, 44100)
	writeTonePeriod(p, 0, 100)
	p.Write(0x90 | 0x0F) // channel 0 volume = max attenuation (silent)
	p.Write(0xB0 | 0x0F) // channel 1 volume = max attenuation (silent)
	p.Write(0xD0 | 0x0F) // channel 2 volume = max attenuation (silent)
	p.Write(0xF0 | 0x0F) // noise volume = max attenuation (silent)

	var lastSample float32 = -99
	p.SetSink(func(l, r float32) { lastSample = l })

	for i := 0; i < psgClockDivider*200; i++ {
		p.Advance(1)
	}

	if lastSample != 0 {
		t.Fatalf("sample = %v, want 0 with all channels at max attenuation", lastSample)
	}
}

// TestPSGNoiseControlResetsLFSR checks that latching the noise control
// register reseeds the LFSR to its power-on value.
func TestPSGNoiseControlResetsLFSR(t *testing.T) {
	p := NewPSG(3579545, 44100)
	p.noise.lfsr = 0x0001
	p.Write(0xE4) // latch noise control, low nibble 4 -> white noise, period 0x10

	if p.noise.lfsr != 0x8000 {
		t.Fatalf("noise.lfsr = 0x%04X, want reseeded 0x8000", p.noise.lfsr)
	}
	if p.noise.control != 0x04 {
		t.Fatalf("noise.control = 0x%02X, want 0x04", p.noise.control)
	}
}
