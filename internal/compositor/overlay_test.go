package compositor

import "testing"

func TestOverlayArgs(t *testing.T) {
	c := New("", 0)
	if c.Binary != "ffmpeg" {
		t.Fatalf("unexpected binary: %s", c.Binary)
	}

	args := c.OverlayArgs("/tmp/raw.mp4", "/tmp/wm.png", "/tmp/out.mp4")
	if args[0] != "-i" || args[1] != "/tmp/raw.mp4" || args[2] != "-i" || args[3] != "/tmp/wm.png" {
		t.Fatalf("unexpected inputs: %v", args)
	}
	if args[len(args)-1] != "/tmp/out.mp4" || args[len(args)-2] != "-y" {
		t.Fatalf("output must be last and overwritten: %v", args)
	}

	want := "[1:v][0:v]scale2ref=w=main_w*0.15:h=ow/a[wm][base];[base][wm]overlay=x=main_w*0.025:y=main_h*0.04"
	if args[5] != want {
		t.Fatalf("unexpected filter graph:\n got %s\nwant %s", args[5], want)
	}
}

func TestNewCustomWidth(t *testing.T) {
	c := New("/usr/bin/ffmpeg", 0.2)
	if c.Placement.WidthRatio != 0.2 {
		t.Fatalf("unexpected width ratio: %v", c.Placement.WidthRatio)
	}
	if c.Placement.OffsetX != DefaultPlacement.OffsetX || c.Placement.OffsetY != DefaultPlacement.OffsetY {
		t.Fatalf("offsets must keep defaults: %+v", c.Placement)
	}
}
