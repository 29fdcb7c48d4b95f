package audio

// ToMono collapses an interleaved stereo clip to mono by averaging the L+R
// pair of each frame. Mono input is returned unchanged. Uses int32
// arithmetic to avoid overflow and clamps to the int16 range.
func ToMono(c Clip) Clip {
	if c.Channels != 2 {
		return c
	}
	frames := len(c.PCM) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(c.PCM[i*4]) | int16(c.PCM[i*4+1])<<8)
		r := int32(int16(c.PCM[i*4+2]) | int16(c.PCM[i*4+3])<<8)
		avg := (l + r) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return Clip{PCM: out, SampleRate: c.SampleRate, Channels: 1}
}

// Resample converts a mono clip to dstRate using linear interpolation.
// Stereo input is downmixed first. If the clip already has the target rate
// and is mono, it is returned unchanged.
func Resample(c Clip, dstRate int) Clip {
	c = ToMono(c)
	if dstRate <= 0 || c.SampleRate <= 0 || c.SampleRate == dstRate || len(c.PCM) < 2 {
		return c
	}

	srcSamples := len(c.PCM) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(c.SampleRate))
	if dstSamples == 0 {
		return Clip{SampleRate: dstRate, Channels: 1}
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(c.SampleRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(c.PCM[srcIdx*2]) | int16(c.PCM[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(c.PCM[(srcIdx+1)*2]) | int16(c.PCM[(srcIdx+1)*2+1])<<8
		}

		interp := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interp)
		out[i*2+1] = byte(interp >> 8)
	}
	return Clip{PCM: out, SampleRate: dstRate, Channels: 1}
}
