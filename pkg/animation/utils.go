package animation

// CountTranslationKeys returns the number of translation keys of track, or of
// all tracks when track is negative.
func CountTranslationKeys(a *Animation, track int) int {
	return countKeys(a.translationOffsets, a.numTracks, track)
}

// CountRotationKeys returns the number of rotation keys of track, or of all
// tracks when track is negative.
func CountRotationKeys(a *Animation, track int) int {
	return countKeys(a.rotationOffsets, a.numTracks, track)
}

// CountScaleKeys returns the number of scale keys of track, or of all tracks
// when track is negative.
func CountScaleKeys(a *Animation, track int) int {
	return countKeys(a.scaleOffsets, a.numTracks, track)
}

func countKeys(offsets []int32, numTracks, track int) int {
	if track < 0 {
		return int(offsets[numTracks])
	}
	if track >= numTracks {
		return 0
	}
	return int(offsets[track+1] - offsets[track])
}
