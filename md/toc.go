package md

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TrackType distinguishes the one DATA track a Mode-1 Mega-CD image may
// carry from CD-DA AUDIO tracks (spec.md §3 TOC).
type TrackType int

const (
	TrackAudio TrackType = iota
	TrackData
)

// BackingKind tags how a track's bytes are read back during playback.
type BackingKind int

const (
	BackingNone BackingKind = iota
	BackingFile
	BackingVorbis
)

const sectorsPerSecond = 75

// samplesPerSector is 44100 Hz / 75 sectors-per-second: the PCM sample-frame
// count one CD-DA sector holds, used to convert a decoded sample count into
// a sector length (spec.md §4.4: "audio byte offsets are multiplied by 2352
// (PCM) or 588 (Vorbis already decoded to samples, divide by 4)" — 588
// samples/sector × 4 bytes/sample == 2352 bytes/sector).
const samplesPerSector = 588

// Track is one TOC entry: LBA extent, byte-offset skew into its backing
// stream, and what kind of file serves it.
type Track struct {
	Type    TrackType
	Start   uint32 // LBA
	End     uint32 // LBA
	Offset  int64  // signed byte offset into backing, encodes PREGAP/header skew
	Backing BackingKind
	Path    string
}

// TOC is C4's Table-of-Contents (spec.md §3).
type TOC struct {
	SectorSize int // 0 (audio-only), 2048, or 2352
	Last       int // number of tracks
	End        uint32
	Tracks     []Track
	HasSub     bool
}

// waveHeader is bytes 12-39 of the one supported 44-byte 44.1kHz/16-bit/
// stereo WAV header: the "fmt " chunk (PCM, 2 channels, 44100 Hz, 176400
// bytes/s, block align 4, 16 bits) and the "data" chunk id. Together with the
// "WAVE" id that parseWAVHeader checks at offset 8, it forms the 32-byte
// signature of cdd.c's waveHeader[32].
var waveHeader = [28]byte{
	0x66, 0x6d, 0x74, 0x20, 0x10, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x00,
	0x44, 0xac, 0x00, 0x00, 0x10, 0xb1, 0x02, 0x00, 0x04, 0x00, 0x10, 0x00,
	0x64, 0x61, 0x74, 0x61,
}

// sidecarTemplates mirrors cdd.c's extensions[] table: candidate filename
// patterns tried, in order, when no .cue sheet is present. Vorbis templates
// are listed for parity with the original (detected, not decoded — see
// detectVorbisPCMTotal).
var sidecarTemplates = []string{
	"%02d.ogg", " %02d.ogg", "-%02d.ogg", "_%02d.ogg", " - %02d.ogg",
	"%d.ogg", " %d.ogg", "-%d.ogg", "_%d.ogg", " - %d.ogg",
	"%02d.wav", " %02d.wav", "-%02d.wav", "_%02d.wav", " - %02d.wav",
	"%d.wav", " %d.wav", "-%d.wav", "_%d.wav", " - %d.wav",
}

// LoadTOC builds a TOC from a filesystem path, per spec.md §4.4's TOC
// loader behavior. Returns 1 when path itself carries a SEGADISCSYSTEM data
// track (with or without an adjacent .cue), 0 otherwise (audio-only
// layouts), or an error for a malformed CUE.
func LoadTOC(path string) (*TOC, int, error) {
	t := &TOC{}

	dataHeader, hasData, err := detectDataTrack(path)
	if err != nil {
		return nil, 0, err
	}

	cueSheet := findAdjacentCue(path)
	if cueSheet != "" {
		if err := parseCue(t, cueSheet); err != nil {
			return nil, 0, fmt.Errorf("parsing cue sheet %s: %w", cueSheet, err)
		}
	} else {
		if err := discoverSidecarTracks(t, path, hasData); err != nil {
			return nil, 0, err
		}
	}

	if hasData && len(t.Tracks) > 0 {
		if code := productCode(dataHeader); code != "" {
			if lengths := findTOCOverride(code); lengths != nil {
				applyTOCOverride(t, lengths)
			}
		}
	}

	loaded := 0
	if hasData {
		loaded = 1
	}
	return t, loaded, nil
}

// detectDataTrack checks for the "SEGADISCSYSTEM" signature at sector
// offset 0 (2048-byte sectors) or 0x10 (2352-byte raw sectors), per
// spec.md §4.4.
func detectDataTrack(path string) (header []byte, hasData bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening disc image: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 0x200)
	n, _ := f.Read(buf)
	buf = buf[:n]

	const signature = "SEGADISCSYSTEM"
	if bytes.HasPrefix(buf, []byte(signature)) {
		return buf, true, nil
	}
	if len(buf) >= 0x10+len(signature) && bytes.Equal(buf[0x10:0x10+len(signature)], []byte(signature)) {
		return buf, true, nil
	}
	return nil, false, nil
}

// productCode extracts the header's product-code field (offset 0x180,
// matching cdd.c's strstr(header+0x180, ...) checks) for TOC-override
// matching.
func productCode(header []byte) string {
	if len(header) < 0x180+16 {
		return ""
	}
	field := string(header[0x180 : 0x180+16])
	for _, o := range tocOverrides {
		if strings.Contains(field, o.productCode) {
			return o.productCode
		}
	}
	return ""
}

func findAdjacentCue(path string) string {
	candidate := strings.TrimSuffix(path, filepath.Ext(path)) + ".cue"
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// cueIndexInfo carries each track's raw INDEX 01 timestamp (sectors within
// its own FILE's scope) and the pregap accumulated immediately before it,
// so lengths can be resolved in a second pass once every track's position is
// known (see parseCue's length-resolution loop below).
type cueIndexInfo struct {
	idxPos uint32
	pregap uint32
}

// parseCue parses FILE/TRACK/PREGAP/INDEX directives, per spec.md §4.4.
func parseCue(t *TOC, cuePath string) error {
	f, err := os.Open(cuePath)
	if err != nil {
		return err
	}
	defer f.Close()

	dir := filepath.Dir(cuePath)
	scanner := bufio.NewScanner(f)

	var curFile string
	var curTrackNum int
	var pregapSectors uint32
	var info []cueIndexInfo

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := splitCueLine(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "FILE":
			if len(fields) >= 2 {
				curFile = filepath.Join(dir, strings.Trim(fields[1], `"`))
			}

		case "TRACK":
			if len(fields) < 3 {
				continue
			}
			curTrackNum, _ = strconv.Atoi(fields[1])
			mode := strings.ToUpper(fields[2])
			isData := (mode == "MODE1/2048" || mode == "MODE1/2352") && curTrackNum == 1
			typ := TrackAudio
			sectorSize := 2352
			if isData {
				typ = TrackData
				if mode == "MODE1/2048" {
					sectorSize = 2048
				}
				t.SectorSize = sectorSize
			}
			t.Tracks = append(t.Tracks, Track{Type: typ, Backing: BackingFile, Path: curFile})
			info = append(info, cueIndexInfo{})

		case "PREGAP":
			if len(fields) >= 2 {
				secs, err := parseMSF(fields[1])
				if err != nil {
					return closeTrackAbort(t, fmt.Errorf("bad PREGAP: %w", err))
				}
				pregapSectors += secs
			}

		case "INDEX":
			if len(fields) < 3 || len(t.Tracks) == 0 {
				continue
			}
			indexNum, _ := strconv.Atoi(fields[1])
			if indexNum != 1 {
				continue
			}
			idxPos, err := parseMSF(fields[2])
			if err != nil {
				return closeTrackAbort(t, fmt.Errorf("bad INDEX: %w", err))
			}
			i := len(t.Tracks) - 1
			info[i] = cueIndexInfo{idxPos: idxPos, pregap: pregapSectors}
			pregapSectors = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Second pass: resolve each track's length now that every track's own
	// INDEX position (and whether it shares a backing file with the next
	// track) is known. When two tracks share one file, the first's length is
	// "next INDEX minus this INDEX"; the last track sharing a file gets
	// "end of backing minus this INDEX" (spec.md §4.4's PREGAP/offset
	// accounting, scenario S1).
	var cum uint32
	for i := range t.Tracks {
		tr := &t.Tracks[i]
		sharesNextFile := i+1 < len(t.Tracks) && t.Tracks[i+1].Path == tr.Path

		var length uint32
		var headerLen int64
		if sharesNextFile {
			headerLen, _, err = resolveBackingLength(tr)
			if err != nil {
				t.Tracks = t.Tracks[:i]
				return closeTrackAbort(t, err)
			}
			length = info[i+1].idxPos - info[i].idxPos
		} else {
			var totalLen uint32
			headerLen, totalLen, err = resolveBackingLength(tr)
			if err != nil {
				t.Tracks = t.Tracks[:i]
				return closeTrackAbort(t, err)
			}
			length = totalLen - info[i].idxPos
		}

		start := cum + info[i].pregap
		end := cum + length
		tr.Start = start
		tr.End = end
		tr.Offset = (int64(start)-int64(info[i].idxPos))*2352 - headerLen
		cum = end
	}

	t.Last = len(t.Tracks)
	t.End = cum
	return nil
}

func closeTrackAbort(t *TOC, err error) error {
	// Leaves the TOC consistent up to the last good track, per spec.md §5
	// "Cancellation/timeouts": a failed mid-CUE track aborts parsing and
	// leaves prior tracks intact.
	t.Last = len(t.Tracks)
	return err
}

func splitCueLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// parseMSF parses a CUE MM:SS:FF timestamp into a sector count.
func parseMSF(s string) (uint32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed MSF %q", s)
	}
	m, err1 := strconv.Atoi(parts[0])
	sec, err2 := strconv.Atoi(parts[1])
	fr, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("malformed MSF %q", s)
	}
	return uint32(m*60*sectorsPerSecond + sec*sectorsPerSecond + fr), nil
}

// resolveBackingLength determines a track's byte offset and length in
// sectors from its backing file: raw PCM at 2352 bytes/sector for WAV/bin
// audio, or decoded-sample accounting for Vorbis (spec.md §4.4: "audio byte
// offsets are multiplied by 2352 (PCM) or 588 (Vorbis already decoded to
// samples, divide by 4)").
func resolveBackingLength(tr *Track) (offset int64, lengthSectors uint32, err error) {
	if tr.Path == "" {
		return 0, 0, nil
	}
	ext := strings.ToLower(filepath.Ext(tr.Path))
	switch ext {
	case ".wav":
		hdrLen, pcmBytes, err := parseWAVHeader(tr.Path)
		if err != nil {
			return 0, 0, err
		}
		return int64(hdrLen), uint32(pcmBytes / 4 / samplesPerSector), nil
	case ".ogg":
		pcmTotal, err := detectVorbisPCMTotal(tr.Path)
		if err != nil {
			return 0, 0, err
		}
		return 0, uint32(pcmTotal / samplesPerSector), nil
	default:
		info, err := os.Stat(tr.Path)
		if err != nil {
			return 0, 0, fmt.Errorf("stat backing %s: %w", tr.Path, err)
		}
		sectorBytes := int64(2352)
		if tr.Type == TrackData && tr.Backing == BackingFile {
			sectorBytes = 2048
		}
		return 0, uint32(info.Size() / sectorBytes), nil
	}
}

// parseWAVHeader validates the one supported 44-byte RIFF/WAVE/fmt/data
// header shape against waveHeader and returns the header length (44) and
// the PCM payload size in bytes.
func parseWAVHeader(path string) (headerLen int, pcmBytes int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var buf [44]byte
	if _, err := f.Read(buf[:]); err != nil {
		return 0, 0, fmt.Errorf("short WAV header in %s: %w", path, err)
	}
	if !bytes.Equal(buf[0:4], []byte("RIFF")) || !bytes.Equal(buf[8:12], []byte("WAVE")) {
		return 0, 0, fmt.Errorf("%s is not a RIFF/WAVE file", path)
	}
	if !bytes.Equal(buf[12:40], waveHeader[:]) {
		return 0, 0, fmt.Errorf("%s: unsupported WAV format (need 44.1kHz/16-bit/stereo)", path)
	}
	dataLen := binary.LittleEndian.Uint32(buf[40:44])
	return 44, int64(dataLen), nil
}

// detectVorbisPCMTotal requires rate==44100 && channels==2 (spec.md §4.4),
// read from the Vorbis identification header in the first Ogg page. The
// module has no Vorbis decoder, so it reports the file's raw byte length as
// a conservative stand-in for pcm_total; the audio is not decoded.
func detectVorbisPCMTotal(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat vorbis sidecar %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var hdr [64]byte
	n, _ := f.Read(hdr[:])
	if n < 27 || string(hdr[:4]) != "OggS" {
		return 0, fmt.Errorf("%s is not an Ogg container", path)
	}
	p := 27 + int(hdr[26]) // first packet follows the page's segment table
	if p+16 > n || hdr[p] != 1 || string(hdr[p+1:p+7]) != "vorbis" {
		return 0, fmt.Errorf("%s: no Vorbis identification header", path)
	}
	channels := hdr[p+11]
	rate := binary.LittleEndian.Uint32(hdr[p+12 : p+16])
	if rate != 44100 || channels != 2 {
		return 0, fmt.Errorf("%s: unsupported Vorbis stream (need 44.1kHz stereo)", path)
	}
	return info.Size(), nil
}

// discoverSidecarTracks auto-discovers numbered audio files using
// sidecarTemplates when no .cue sheet exists, inserting a default 2-second
// PREGAP (150 sectors) between tracks and auto-detecting already-encoded
// leading silence (spec.md §4.4).
func discoverSidecarTracks(t *TOC, path string, hasData bool) error {
	dir := filepath.Dir(path)
	end := uint32(0)

	if hasData {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		sectors := uint32(info.Size() / 2048)
		t.Tracks = append(t.Tracks, Track{Type: TrackData, Start: 0, End: sectors, Backing: BackingFile, Path: path})
		end = sectors
		t.SectorSize = 2048
	}

	for trackNum := 2; trackNum <= 99; trackNum++ {
		found := ""
		for _, tmpl := range sidecarTemplates {
			candidate := filepath.Join(dir, fmt.Sprintf(tmpl, trackNum))
			if _, err := os.Stat(candidate); err == nil {
				found = candidate
				break
			}
		}
		if found == "" {
			break
		}

		pregap := uint32(2 * sectorsPerSecond)
		start := end + pregap
		offset, length, err := resolveBackingLength(&Track{Path: found, Type: TrackAudio, Backing: BackingFile})
		if err != nil {
			return closeTrackAbort(t, err)
		}

		if hasLeadingSilence(found) {
			start -= pregap
		}

		tr := Track{Type: TrackAudio, Start: start, End: start + length, Offset: offset, Backing: BackingFile, Path: found}
		t.Tracks = append(t.Tracks, tr)
		end = tr.End
	}

	t.Last = len(t.Tracks)
	t.End = end
	return nil
}

// hasLeadingSilence checks for 2352 zero bytes at sector 100, the original
// core's heuristic for "a 2-second pause is already encoded in this file."
func hasLeadingSilence(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 2352)
	if _, err := f.ReadAt(buf, int64(100*2352)); err != nil {
		return false
	}
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
