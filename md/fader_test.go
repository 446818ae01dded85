package md

import "testing"

func TestFader_StartsAtFullVolume(t *testing.T) {
	f := NewFader()
	if f.curVol != 0x400 {
		t.Errorf("initial curVol: expected 0x400, got 0x%04X", f.curVol)
	}
}

// TestFader_FullVolumePassesSampleThrough verifies that at full volume the
// multiplier is 1024/1024 and output tracks the input exactly.
func TestFader_FullVolumePassesSampleThrough(t *testing.T) {
	f := NewFader()
	f.SetTarget(0x400)

	dl, dr, _ := f.Process(1000, -1000)
	if dl != 1000 {
		t.Errorf("deltaL: expected 1000, got %d", dl)
	}
	if dr != -1000 {
		t.Errorf("deltaR: expected -1000, got %d", dr)
	}
}

// TestFader_RampsTowardTarget verifies curVol steps by exactly one unit per
// Process call toward endVol.
func TestFader_RampsTowardTarget(t *testing.T) {
	f := NewFader()
	f.SetTarget(0)

	prev := f.curVol
	for i := 0; i < 10; i++ {
		f.Process(100, 100)
		if f.curVol != prev-1 {
			t.Fatalf("step %d: curVol = %d, want %d", i, f.curVol, prev-1)
		}
		prev = f.curVol
	}
}

// TestFader_DoneWhenBothZero verifies Process reports done once curVol and
// endVol both reach zero.
func TestFader_DoneWhenBothZero(t *testing.T) {
	f := NewFader()
	f.SetTarget(0)

	done := false
	for i := 0; i < 2000 && !done; i++ {
		_, _, done = f.Process(0, 0)
	}
	if !done {
		t.Error("fader never signaled done while ramping to zero")
	}
	if f.curVol != 0 {
		t.Errorf("curVol at done: expected 0, got %d", f.curVol)
	}
}

// TestFaderMultiplier_LowerSteps spot-checks the LC7883 non-uniform lower
// step curve (spec.md §4.4's literal formula).
func TestFaderMultiplier_LowerSteps(t *testing.T) {
	cases := []struct {
		curVol int16
		want   int16
	}{
		{0x000, 0x000},
		{0x001, 0x001},
		{0x002, 0x002},
		{0x003, 0x003},
		{0x400, 0x400},
		{0x7FF, 0x7FC},
	}
	for _, c := range cases {
		if got := faderMultiplier(c.curVol); got != c.want {
			t.Errorf("faderMultiplier(0x%X) = 0x%X, want 0x%X", c.curVol, got, c.want)
		}
	}
}

// TestFader_DrainEmitsNegationAndResets verifies Drain emits -lastL/-lastR
// then clears the tracked output so a stopped stream doesn't click.
func TestFader_DrainEmitsNegationAndResets(t *testing.T) {
	f := NewFader()
	f.SetTarget(0x400)
	f.Process(500, -200)

	dl, dr := f.Drain()
	if dl != -500 || dr != 200 {
		t.Errorf("Drain() = (%d, %d), want (-500, 200)", dl, dr)
	}
	l, r := f.LastOutput()
	if l != 0 || r != 0 {
		t.Errorf("LastOutput after Drain: expected (0,0), got (%d,%d)", l, r)
	}
}
