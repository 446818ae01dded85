package md

// Per-title TOC overrides, grounded on original_source/core/cd_hw/cdd.c's
// toc_snatcher/toc_lunar/toc_shadow/toc_dungeon/toc_ffight/toc_ffightj
// tables. Six Mega-CD titles ship a single DATA track followed by audio
// tracks whose exact lengths the disc image's own TOC sector doesn't carry
// reliably enough for every known dump; the original core substitutes a
// fixed table of track lengths (in sectors) keyed by product code. This is
// a supplemented feature (spec.md §9's design note), not excluded by any
// Non-goal.
type tocOverride struct {
	productCode  string
	trackLengths []uint32
}

var tocOverrides = []tocOverride{
	{"T-95035", trackLengthsFrom16(snatcherTrackLengths[:])},  // Snatcher
	{"T-127015", trackLengthsFrom16(lunarTrackLengths[:])},     // Lunar: The Silver Star
	{"T-113045", shadowBeastTrackLengths[:]},                   // Shadow of the Beast II
	{"T-143025", dungeonExplorerTrackLengths[:]},                // Dungeon Explorer
	{"MK-4410", finalFightUSTrackLengths[:]},                    // Final Fight CD (US/EU)
	{"G-6013", finalFightJPTrackLengths[:]},                     // Final Fight CD (JP)
}

func trackLengthsFrom16(in []uint16) []uint32 {
	out := make([]uint32, len(in))
	for i, v := range in {
		out[i] = uint32(v)
	}
	return out
}

var snatcherTrackLengths = [21]uint16{
	56014, 495, 10120, 20555, 1580, 5417, 12502, 16090, 6553, 9681,
	8148, 20228, 8622, 6142, 5858, 1287, 7424, 3535, 31697, 2485,
	31380,
}

var lunarTrackLengths = [52]uint16{
	5422, 1057, 7932, 5401, 6380, 6592, 5862, 5937, 5478, 5870,
	6673, 6613, 6429, 4996, 4977, 5657, 3720, 5892, 3140, 3263,
	6351, 5187, 3249, 1464, 1596, 1750, 1751, 6599, 4578, 5205,
	1550, 1827, 2328, 1346, 1569, 1613, 7199, 4928, 1656, 2549,
	1875, 3901, 1850, 2399, 2028, 1724, 4889, 14551, 1184, 2132,
	685, 3167,
}

var shadowBeastTrackLengths = [15]uint32{
	10226, 70054, 11100, 12532, 12444, 11923, 10059, 10167, 10138, 13792,
	11637, 2547, 2521, 3856, 900,
}

var dungeonExplorerTrackLengths = [13]uint32{
	2250, 22950, 16350, 24900, 13875, 19950, 13800, 15375, 17400, 17100,
	3325, 6825, 25275,
}

var finalFightUSTrackLengths = [26]uint32{
	11994, 9742, 10136, 9685, 9553, 14588, 9430, 8721, 9975, 9764,
	9704, 12796, 585, 754, 951, 624, 9047, 1068, 817, 9191, 1024,
	14562, 10320, 8627, 3795, 3047,
}

var finalFightJPTrackLengths = [29]uint32{
	11994, 9752, 10119, 9690, 9567, 14575, 9431, 8731, 9965, 9763,
	9716, 12791, 579, 751, 958, 630, 9050, 1052, 825, 9193, 1026,
	14553, 9834, 10542, 1699, 1792, 1781, 3783, 3052,
}

// findTOCOverride returns the matching override's track lengths for a
// product code found in the disc image header, or nil if none matches.
func findTOCOverride(productCode string) []uint32 {
	for _, o := range tocOverrides {
		if o.productCode == productCode {
			return o.trackLengths
		}
	}
	return nil
}

// applyTOCOverride rebuilds the TOC's track start/end fields from a fixed
// table of track lengths (in sectors), matching cdd.c's override loop:
// track i's start is the running end, its end is start+length.
func applyTOCOverride(t *TOC, lengths []uint32) {
	t.Tracks = make([]Track, len(lengths))
	end := uint32(0)
	for i, length := range lengths {
		start := end
		end = start + length
		typ := TrackAudio
		if i == 0 {
			typ = TrackData
		}
		t.Tracks[i] = Track{Type: typ, Start: start, End: end}
	}
	t.Last = len(lengths)
	t.End = end
}
