// Command mdplay drives the CDD and audio mixer against a loaded disc image
// and streams the resulting audio mix to the host's default output device.
// It exists to manually smoke-test the CD audio path; no Scheduler, VDP or
// CPU is run. It is not part of the
// md package's component budget (see SPEC_FULL.md).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/user-none/mdcore/md"
)

const outputSampleRate = 48000

// ringReader adapts Mixer.MixFrame's per-frame byte slices to the
// io.Reader oto.Context.NewPlayer expects, the same producer/consumer split
// IntuitionEngine's OtoPlayer uses between its emulation loop and Read.
type ringReader struct {
	mu  sync.Mutex
	buf []byte
}

func (r *ringReader) push(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, frame...)
}

func (r *ringReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(p, r.buf)
	if n < len(p) {
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		n = len(p)
	} else {
		r.buf = r.buf[n:]
	}
	return n, nil
}

func main() {
	discPath := flag.String("disc", "", "path to a CD image with a data track (an adjacent .cue sheet is used if present)")
	region := flag.String("region", "ntsc", "ntsc or pal")
	seconds := flag.Int("seconds", 5, "seconds of audio to stream before exiting")
	flag.Parse()

	if *discPath == "" {
		log.Fatal("mdplay: -disc is required")
	}

	reg := md.RegionNTSC
	if *region == "pal" {
		reg = md.RegionPAL
	}
	timing := md.GetTimingForRegion(reg)

	toc, loaded, err := md.LoadTOC(*discPath)
	if err != nil {
		log.Fatalf("mdplay: loading TOC: %v", err)
	}
	if loaded == 0 {
		log.Fatalf("mdplay: no disc image found at %s", *discPath)
	}

	cdd := md.NewCDD()
	cdd.Load(toc, loaded)
	cdd.ProcessCommand() // status poll to settle into STOP

	psg := md.NewPSGChip(timing.Z80ClockHz, outputSampleRate, outputSampleRate/int(timing.FPS)+8)
	mixer := md.NewMixer(outputSampleRate, timing, psg, nil, cdd)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   outputSampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		log.Fatalf("mdplay: opening audio context: %v", err)
	}
	<-ready

	ring := &ringReader{}
	player := ctx.NewPlayer(ring)
	player.Play()
	defer player.Close()

	frameInterval := time.Second / time.Duration(timing.FPS)
	deadline := time.Now().Add(time.Duration(*seconds) * time.Second)
	for time.Now().Before(deadline) {
		cdd.Update()
		ring.push(mixer.MixFrame())
		time.Sleep(frameInterval)
	}

	fmt.Fprintf(os.Stderr, "mdplay: streamed %d seconds from %s\n", *seconds, *discPath)
}
