package md

import (
	"encoding/binary"
	"io"
	"log"
	"os"
)

// CDDStatus is the drive's externally-visible state (spec.md §3 CDD State).
type CDDStatus uint8

const (
	StatusNoDisc CDDStatus = iota
	StatusStop
	StatusPlay
	StatusSeek
	StatusReady
	StatusScan
	StatusEnd
	StatusOpen
)

// cdScanSpeed is CD_SCAN_SPEED from cdd.c: the LBA step applied per
// interrupt tick while forward/rewind scanning.
const cdScanSpeed = 30

// Register byte offsets within CDD's status/command register file,
// matching the real Mega-CD hardware map spec.md §4.4's command table
// documents directly (unlike the VDP's invented layout, this protocol is
// the part of the spec that names concrete offsets).
const (
	regRS0       = 0x38 // status (high byte), RS1 (low byte)
	regRS2       = 0x3A
	regRS4       = 0x3C
	regRS6       = 0x3E
	regRS8       = 0x40 // RS8 (high byte), checksum (low byte)
	regFaderVol  = 0x34 // CD-DA fader set-volume (word, endVol = val>>4)
	regAudioMute = 0x36 // high byte: 0x01 = no audio track playing
	regCommand   = 0x42 // low nibble of high byte = command code
	regSubCmd    = 0x44 // low byte = Read TOC sub-command
	regMM        = 0x44
	regSS        = 0x46
	regFF        = 0x48
	regSubPtr    = 0x68
)

// CDD is C4: the CD-drive processor. Command/status register protocol,
// LBA seek with a linear latency model, playback/scan state machine,
// CD-DA fader, and subcode streaming. Grounded throughout on
// original_source/core/cd_hw/cdd.c.
type CDD struct {
	toc        *TOC
	status     CDDStatus
	lba        int32
	index      int
	latency    int32
	scanOffset int32
	loaded     bool

	fader *Fader

	reg [0x6A]uint8

	dataFile  *os.File
	audioFile *os.File
	subFile   *os.File

	currentTrackPath string
	pendingLevel6    bool
}

func NewCDD() *CDD {
	return &CDD{
		status: StatusNoDisc,
		fader:  NewFader(),
	}
}

// Load attaches a TOC built by LoadTOC.
func (c *CDD) Load(toc *TOC, loaded int) {
	c.toc = toc
	c.loaded = loaded != 0
	if c.loaded {
		c.status = StatusStop
		if len(toc.Tracks) > 0 && toc.Tracks[0].Type == TrackData {
			f, err := os.Open(toc.Tracks[0].Path)
			if err != nil {
				log.Printf("cdd: opening data track: %v", err)
			} else {
				c.dataFile = f
			}
		}
	} else {
		c.status = StatusNoDisc
	}
}

// Unload releases all track backings, per spec.md §5's cancellation point.
func (c *CDD) Unload() {
	for _, f := range []*os.File{c.dataFile, c.audioFile, c.subFile} {
		if f != nil {
			f.Close()
		}
	}
	c.dataFile, c.audioFile, c.subFile = nil, nil, nil
	c.toc = nil
	c.loaded = false
	c.status = StatusNoDisc
}

func (c *CDD) Status() CDDStatus { return c.status }
func (c *CDD) LBA() int32        { return c.lba }
func (c *CDD) TrackIndex() int   { return c.index }

// --- register helpers --------------------------------------------------------

func (c *CDD) setRS0(hi, lo uint8) {
	c.reg[regRS0] = hi
	c.reg[regRS0+1] = lo
}

func (c *CDD) setWord(offset int, w uint16) {
	binary.BigEndian.PutUint16(c.reg[offset:], w)
}

func (c *CDD) word(offset int) uint16 {
	return binary.BigEndian.Uint16(c.reg[offset:])
}

// checksum writes the one's-complement-low-nibble checksum over RS0-RS8 to
// the low byte of the RS8/checksum word, per spec.md §4.4's closing
// paragraph.
func (c *CDD) checksum() {
	sum := int(c.reg[regRS0]) + int(c.reg[regRS0+1]) +
		int(c.reg[regRS2]) + int(c.reg[regRS2+1]) +
		int(c.reg[regRS4]) + int(c.reg[regRS4+1]) +
		int(c.reg[regRS6]) + int(c.reg[regRS6+1]) +
		int(c.reg[regRS8])
	c.reg[regRS8+1] = uint8(^sum) & 0x0F
}

// SetRegisterByte lets the host (68000-side glue, out of scope here) poke
// the command/parameter register file directly.
func (c *CDD) SetRegisterByte(offset int, val uint8) {
	if offset >= 0 && offset < len(c.reg) {
		c.reg[offset] = val
	}
}

func (c *CDD) RegisterByte(offset int) uint8 {
	if offset < 0 || offset >= len(c.reg) {
		return 0
	}
	return c.reg[offset]
}

// bcdPairToDecimal reads a two-nibble BCD pair stored as separate tens/ones
// digit bytes, the encoding cdd.c uses for the MM/SS/FF command parameters
// (`byte.h*10 + byte.l`).
func bcdPairToDecimal(hi, lo uint8) int {
	return int(hi)*10 + int(lo)
}

// --- command protocol ---------------------------------------------------

// ProcessCommand dispatches the command nibble most recently written to
// register 0x42 (spec.md §4.4 "Command protocol").
func (c *CDD) ProcessCommand() {
	cmd := c.reg[regCommand] & 0x0F

	switch cmd {
	case 0x00: // Status poll
		if c.reg[regRS0+1] == 0x0F && c.status != StatusSeek {
			c.refreshTrackInfo()
		}
		c.setRS0(uint8(c.status), c.reg[regRS0+1])

	case 0x01: // Stop
		if c.loaded {
			c.status = StatusStop
		} else {
			c.status = StatusNoDisc
		}
		c.mute()
		c.setWord(regRS0, 0)
		c.setWord(regRS2, 0)
		c.setWord(regRS4, 0)
		c.setWord(regRS6, 0)
		c.setWord(regRS8, 0x000F)
		return

	case 0x02: // Read TOC
		c.readTOC()

	case 0x03: // Play
		c.play()
		c.checksum()
		return

	case 0x04: // Seek
		c.seek()
		c.checksum()
		return

	case 0x06: // Pause
		c.mute()
		c.status = StatusReady
		c.reg[regRS0] = uint8(c.status)

	case 0x07: // Resume
		c.status = StatusPlay
		c.reg[regRS0] = uint8(c.status)

	case 0x08: // Forward scan
		c.scanOffset = cdScanSpeed
		c.status = StatusScan
		c.reg[regRS0] = uint8(c.status)

	case 0x09: // Rewind scan
		c.scanOffset = -cdScanSpeed
		c.status = StatusScan
		c.reg[regRS0] = uint8(c.status)

	case 0x0A: // N-Track Jump — parameters observed, not simulated further
		c.mute()
		c.status = StatusReady
		c.reg[regRS0] = uint8(c.status)

	case 0x0C: // Close tray
		c.mute()
		if c.loaded {
			c.status = StatusStop
		} else {
			c.status = StatusNoDisc
		}
		c.setWord(regRS0, 0)
		c.setWord(regRS2, 0)
		c.setWord(regRS4, 0)
		c.setWord(regRS6, 0)
		c.setWord(regRS8, 0x000F)
		return

	case 0x0D: // Open tray
		c.mute()
		c.status = StatusOpen
		c.setWord(regRS0, uint16(c.status)<<8)
		c.setWord(regRS2, 0)
		c.setWord(regRS4, 0)
		c.setWord(regRS6, 0)
		c.setWord(regRS8, ^uint16(c.status)&0x0F)
		return

	default:
		log.Printf("cdd: unknown command %#x", cmd)
		c.reg[regRS0] = uint8(c.status)
	}

	c.checksum()
}

func (c *CDD) mute() { c.reg[regAudioMute] = 0x01 }

// readTOC implements Read TOC's six sub-commands (spec.md §4.4), all
// returned as BCD via lut_BCD_8/16.
func (c *CDD) readTOC() {
	sub := c.reg[regSubCmd+1]
	c.setWord(regRS0, uint16(c.status)<<8|uint16(sub))

	switch sub {
	case 0x00: // Absolute Time
		msf := uint32(c.lba) + 150
		c.setWord(regRS2, bcd16(int((msf/75)/60)))
		c.setWord(regRS4, bcd16(int((msf/75)%60)))
		c.setWord(regRS6, bcd16(int(msf%75)))
	case 0x01: // Relative Time
		if c.toc != nil && c.index < len(c.toc.Tracks) {
			rel := uint32(c.lba) - c.toc.Tracks[c.index].Start
			c.setWord(regRS2, bcd16(int((rel/75)/60)))
			c.setWord(regRS4, bcd16(int((rel/75)%60)))
			c.setWord(regRS6, bcd16(int(rel%75)))
		}
	case 0x02: // Current Track
		if c.toc != nil && c.index < c.toc.Last {
			c.setWord(regRS2, bcd16(c.index+1))
		} else {
			c.setWord(regRS2, 0x0A0A)
		}
	case 0x03: // Total Length
		if c.toc != nil {
			lbaEnd := c.toc.End + 150
			c.setWord(regRS2, bcd16(int((lbaEnd/75)/60)))
			c.setWord(regRS4, bcd16(int((lbaEnd/75)%60)))
			c.setWord(regRS6, bcd16(int(lbaEnd%75)))
		}
	case 0x04: // First/Last track
		if c.toc != nil {
			c.setWord(regRS2, bcd16(1))
			c.setWord(regRS4, bcd16(c.toc.Last))
		}
	case 0x05: // Track start
		idx := int(bcdPairToDecimal(c.reg[regSubCmd+2], c.reg[regSubCmd+3]))
		if c.toc != nil && idx >= 1 && idx <= len(c.toc.Tracks) {
			start := c.toc.Tracks[idx-1].Start + 150
			c.setWord(regRS2, bcd16(int((start/75)/60)))
			c.setWord(regRS4, bcd16(int((start/75)%60)))
			c.setWord(regRS6, bcd16(int(start%75)))
			typ := uint8(0)
			if c.toc.Tracks[idx-1].Type == TrackData {
				typ = 1
			}
			c.reg[regRS8] = typ << 2
		}
	}
}

// play computes a target LBA from the BCD MM:SS:FF triplet and the base
// latency model (spec.md §4.4 "Play").
func (c *CDD) play() {
	lba := targetLBA(c.reg[regMM], c.reg[regMM+1], c.reg[regSS], c.reg[regSS+1], c.reg[regFF], c.reg[regFF+1])

	c.latency = 7 + seekLatency(c.lba, int32(lba))
	c.lba = int32(lba)
	c.index = c.trackForLBA(c.lba)

	if c.toc != nil && c.index < len(c.toc.Tracks) && c.lba < int32(c.toc.Tracks[c.index].Start) {
		c.lba = int32(c.toc.Tracks[c.index].Start)
	}
	c.seekBackings()

	c.mute()
	c.status = StatusPlay
	c.setWord(regRS0, uint16(c.status)<<8|0x02)
	if c.toc != nil && c.index < c.toc.Last {
		c.setWord(regRS2, bcd16(c.index+1))
	} else {
		c.setWord(regRS2, 0x0A0A)
	}
	c.setWord(regRS4, 0)
	c.setWord(regRS6, 0)
	c.reg[regRS8] = 0
}

// seek is Play's math without the base latency (spec.md §4.4 "Seek").
func (c *CDD) seek() {
	lba := targetLBA(c.reg[regMM], c.reg[regMM+1], c.reg[regSS], c.reg[regSS+1], c.reg[regFF], c.reg[regFF+1])

	c.latency = seekLatency(c.lba, int32(lba))
	c.lba = int32(lba)
	c.index = c.trackForLBA(c.lba)

	if c.toc != nil && c.index < len(c.toc.Tracks) && c.lba < int32(c.toc.Tracks[c.index].Start) {
		c.lba = int32(c.toc.Tracks[c.index].Start)
	}
	c.seekBackings()

	c.mute()
	c.status = StatusSeek
	c.setWord(regRS0, uint16(c.status)<<8|0x0F)
	c.setWord(regRS2, 0)
	c.setWord(regRS4, 0)
	c.setWord(regRS6, 0)
	c.setWord(regRS8, ^uint16(c.status+0x0F)&0x0F)
}

func targetLBA(mmHi, mmLo, ssHi, ssLo, ffHi, ffLo uint8) int {
	return (bcdPairToDecimal(mmHi, mmLo)*60+bcdPairToDecimal(ssHi, ssLo))*75 + bcdPairToDecimal(ffHi, ffLo) - 150
}

// seekLatency is the linear seek-time model spec.md §4.4 gives:
// |Δlba| × 120 / 270000.
func seekLatency(from, to int32) int32 {
	delta := to - from
	if delta < 0 {
		delta = -delta
	}
	return (delta * 120) / 270000
}

func (c *CDD) trackForLBA(lba int32) int {
	if c.toc == nil {
		return 0
	}
	idx := 0
	for idx < c.toc.Last && int32(c.toc.Tracks[idx].End) <= lba {
		idx++
	}
	return idx
}

func (c *CDD) refreshTrackInfo() {
	c.readTOC()
}

// seekBackings repositions the open track/subcode file descriptors to the
// current LBA.
func (c *CDD) seekBackings() {
	if c.toc == nil || c.index >= len(c.toc.Tracks) {
		return
	}
	tr := c.toc.Tracks[c.index]
	if tr.Type == TrackData {
		if c.dataFile != nil {
			c.dataFile.Seek(int64(c.lba)*int64(c.sectorBytes()), io.SeekStart)
		}
		return
	}
	if tr.Path != c.currentTrackPath {
		if c.audioFile != nil {
			c.audioFile.Close()
		}
		f, err := os.Open(tr.Path)
		if err != nil {
			log.Printf("cdd: opening audio track: %v", err)
			c.audioFile = nil
		} else {
			c.audioFile = f
			c.currentTrackPath = tr.Path
		}
	}
	if c.audioFile != nil {
		c.audioFile.Seek(int64(c.lba)*2352-tr.Offset, io.SeekStart)
	}
}

func (c *CDD) sectorBytes() int {
	if c.toc != nil && c.toc.SectorSize != 0 {
		return c.toc.SectorSize
	}
	return 2352
}

// --- per-interrupt update -------------------------------------------------

// Update advances the drive state machine by one tick, called at the
// nominal ~75 Hz CDD interrupt rate (spec.md §4.4 "Per-interrupt update").
func (c *CDD) Update() {
	switch c.status {
	case StatusSeek:
		if c.latency > 0 {
			c.latency--
			return
		}
		c.status = StatusReady

	case StatusPlay:
		if c.latency > 0 {
			c.latency--
			return
		}
		if c.toc == nil || c.index >= c.toc.Last {
			c.status = StatusEnd
			return
		}
		c.stepSector()

	case StatusScan:
		c.stepScan()
	}
}

func (c *CDD) stepSector() {
	tr := c.toc.Tracks[c.index]
	if c.subFile != nil {
		var buf [96]byte
		if _, err := io.ReadFull(c.subFile, buf[:]); err == nil {
			words := deinterleaveSubcode(buf)
			ptr := (int(c.reg[regSubPtr]) + 0x100) >> 1
			for _, w := range words {
				if ptr >= 0 && ptr*2+1 < len(c.reg) {
					c.setWord(ptr*2, w)
				}
				ptr = (ptr + 1) & 0xBF
			}
			if c.reg[0x32]&0x40 != 0 {
				// Level-6 interrupt forwarding is the host 68000 bus's job
				// (out of scope, spec.md §1); callers observe the pending
				// flag via PendingLevel6.
				c.pendingLevel6 = true
			}
		}
	}

	if tr.Type == TrackData {
		// CD-ROM sector header forwarding to a CDC decoder is out of scope
		// (no CD-ROM data filesystem in this spec); only the audio/mute
		// bookkeeping below is observable state this module owns.
	} else if c.lba >= int32(tr.Start) {
		c.reg[regAudioMute] = 0x00
	}

	c.lba++
	if c.lba >= int32(tr.End) {
		c.index++
		c.reg[regAudioMute] = 0x01
		c.seekBackings()
	}
}

func (c *CDD) stepScan() {
	c.lba += c.scanOffset
	if c.toc == nil {
		return
	}
	if c.lba < 0 {
		c.lba = 0
	}
	if uint32(c.lba) >= c.toc.End {
		c.status = StatusEnd
		return
	}
	c.index = c.trackForLBA(c.lba)
	if c.index < len(c.toc.Tracks) {
		tr := c.toc.Tracks[c.index]
		if tr.Type != TrackData && c.lba >= int32(tr.Start) {
			c.reg[regAudioMute] = 0x00
		} else {
			c.reg[regAudioMute] = 0x01
		}
	}
	c.seekBackings()
}

// PendingLevel6 reports and clears a subcode-buffer interrupt request.
func (c *CDD) PendingLevel6() bool {
	p := c.pendingLevel6
	c.pendingLevel6 = false
	return p
}

// ReadAudioSamples reads n stereo sample pairs from the current audio
// track's backing file (raw 16-bit little-endian PCM; Vorbis decode is out
// of scope — see toc.go's detectVorbisPCMTotal), runs them through the
// fader, and returns the delta-encoded stereo output the mixer's CD-DA
// channel consumes (spec.md §4.4 "CD-DA fader").
func (c *CDD) ReadAudioSamples(n int) (deltaL, deltaR []int16) {
	deltaL = make([]int16, n)
	deltaR = make([]int16, n)

	if c.reg[regAudioMute] != 0 || c.audioFile == nil {
		l, r := c.fader.Drain()
		if n > 0 {
			deltaL[0], deltaR[0] = l, r
		}
		return
	}

	c.fader.SetTarget(int16(c.word(regFaderVol) >> 4))

	buf := make([]byte, n*4)
	read, _ := io.ReadFull(c.audioFile, buf)
	samples := read / 4
	for i := 0; i < samples; i++ {
		sl := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		sr := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		dl, dr, done := c.fader.Process(sl, sr)
		deltaL[i], deltaR[i] = dl, dr
		if done {
			break
		}
	}
	return
}
