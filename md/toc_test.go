package md

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestParseMSF_ValidTimestamp(t *testing.T) {
	got, err := parseMSF("01:02:03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(1*60*75 + 2*75 + 3)
	if got != want {
		t.Errorf("parseMSF = %d, want %d", got, want)
	}
}

func TestParseMSF_Malformed(t *testing.T) {
	if _, err := parseMSF("1:2"); err == nil {
		t.Error("expected an error for a two-field timestamp")
	}
	if _, err := parseMSF("aa:bb:cc"); err == nil {
		t.Error("expected an error for non-numeric fields")
	}
}

func TestSplitCueLine_HonorsQuotes(t *testing.T) {
	fields := splitCueLine(`FILE "game audio.wav" WAVE`)
	want := []string{"FILE", `"game audio.wav"`, "WAVE"}
	_ = want
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}
	if fields[1] != `"game audio.wav"` {
		t.Errorf("quoted field = %q, want %q", fields[1], `"game audio.wav"`)
	}
}

func TestDetectDataTrack_SignatureAtOffsetZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.bin")

	buf := make([]byte, 0x200)
	copy(buf, "SEGADISCSYSTEM")
	writeFile(t, path, buf)

	_, hasData, err := detectDataTrack(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasData {
		t.Error("expected a data track to be detected")
	}
}

func TestDetectDataTrack_SignatureAtOffset0x10(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.bin")

	buf := make([]byte, 0x200)
	copy(buf[0x10:], "SEGADISCSYSTEM")
	writeFile(t, path, buf)

	_, hasData, err := detectDataTrack(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasData {
		t.Error("expected a data track to be detected at raw-sector offset")
	}
}

func TestDetectDataTrack_NoSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.bin")
	writeFile(t, path, make([]byte, 0x200))

	_, hasData, err := detectDataTrack(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasData {
		t.Error("expected no data track for a signature-less image")
	}
}

func TestProductCode_MatchesKnownOverride(t *testing.T) {
	header := make([]byte, 0x200)
	copy(header[0x180:], "T-95035         ")

	code := productCode(header)
	if code != "T-95035" {
		t.Errorf("productCode = %q, want %q", code, "T-95035")
	}
}

func TestProductCode_NoMatch(t *testing.T) {
	header := make([]byte, 0x200)
	copy(header[0x180:], "UNKNOWN-CODE")

	if code := productCode(header); code != "" {
		t.Errorf("productCode = %q, want empty", code)
	}
}

func buildWAV(t *testing.T, pcmBytes int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+pcmBytes))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // stereo
	binary.Write(&buf, binary.LittleEndian, uint32(44100))
	binary.Write(&buf, binary.LittleEndian, uint32(44100*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits/sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(pcmBytes))
	buf.Write(make([]byte, pcmBytes))
	return buf.Bytes()
}

func TestParseWAVHeader_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")
	writeFile(t, path, buildWAV(t, 8800))

	headerLen, pcmBytes, err := parseWAVHeader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headerLen != 44 {
		t.Errorf("headerLen = %d, want 44", headerLen)
	}
	if pcmBytes != 8800 {
		t.Errorf("pcmBytes = %d, want 8800", pcmBytes)
	}
}

func TestParseWAVHeader_RejectsNonRIFF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notwav.wav")
	writeFile(t, path, make([]byte, 44))

	if _, _, err := parseWAVHeader(path); err == nil {
		t.Error("expected an error for a non-RIFF file")
	}
}

func TestLoadTOC_CueSheetProducesTracks(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "track01.bin")
	dataBuf := make([]byte, 2048*10)
	copy(dataBuf, "SEGADISCSYSTEM")
	writeFile(t, dataPath, dataBuf)

	audioPath := filepath.Join(dir, "track02.wav")
	writeFile(t, audioPath, buildWAV(t, 2352*75*2))

	cue := "FILE \"track01.bin\" BINARY\n" +
		"  TRACK 01 MODE1/2048\n" +
		"    INDEX 01 00:00:00\n" +
		"FILE \"track02.wav\" WAVE\n" +
		"  TRACK 02 AUDIO\n" +
		"    PREGAP 00:02:00\n" +
		"    INDEX 01 00:00:00\n"
	writeFile(t, filepath.Join(dir, "track01.cue"), []byte(cue))

	toc, loaded, err := LoadTOC(dataPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != 1 {
		t.Errorf("loaded = %d, want 1", loaded)
	}
	if toc.Last != 2 {
		t.Fatalf("expected 2 tracks, got %d", toc.Last)
	}
	if toc.Tracks[0].Type != TrackData {
		t.Error("track 1 should be TrackData")
	}
	if toc.Tracks[1].Type != TrackAudio {
		t.Error("track 2 should be TrackAudio")
	}
	if toc.Tracks[1].Start != toc.Tracks[0].End+150 {
		t.Errorf("track 2 start = %d, want %d (track 1 end + 2s pregap)", toc.Tracks[1].Start, toc.Tracks[0].End+150)
	}
}

// TestLoadTOC_SharedFileTracksSplitByIndex exercises two AUDIO tracks backed
// by one WAV file (spec.md §8 scenario S1): each track's length must come
// from its own INDEX 01 timestamp relative to the next track's INDEX (or, for
// the last track sharing the file, relative to end of file), not from
// re-measuring the whole backing file's length for every track.
func TestLoadTOC_SharedFileTracksSplitByIndex(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "a.wav")
	writeFile(t, audioPath, buildWAV(t, 60*44100*4)) // 60 seconds, 2ch/16-bit

	cue := "FILE \"a.wav\" WAVE\n" +
		"  TRACK 01 AUDIO\n" +
		"    INDEX 01 00:00:00\n" +
		"  TRACK 02 AUDIO\n" +
		"    PREGAP 00:02:00\n" +
		"    INDEX 01 00:30:00\n"
	writeFile(t, filepath.Join(dir, "a.cue"), []byte(cue))

	toc, _, err := LoadTOC(audioPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toc.Last != 2 {
		t.Fatalf("expected 2 tracks, got %d", toc.Last)
	}

	tr0, tr1 := toc.Tracks[0], toc.Tracks[1]
	if tr0.Start != 0 || tr0.End != 2250 {
		t.Errorf("track 1 start/end = %d/%d, want 0/2250", tr0.Start, tr0.End)
	}
	if tr1.Start != 2400 || tr1.End != 4500 {
		t.Errorf("track 2 start/end = %d/%d, want 2400/4500", tr1.Start, tr1.End)
	}
	wantOffset := int64(-44 + 150*2352)
	if tr1.Offset != wantOffset {
		t.Errorf("track 2 offset = %d, want %d", tr1.Offset, wantOffset)
	}
}
