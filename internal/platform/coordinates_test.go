package platform

import "testing"

func TestToScreenPointExactEquality(t *testing.T) {
	x, y := ToScreenPoint(
		NormalizedPoint{NX: 500, NY: 500},
		ScreenConversion{WindowX: 0, WindowY: 0, ScreenshotW: 1000, ScreenshotH: 1000, ResizeScale: 1, DPIScale: 1},
	)
	if x != 500 || y != 500 {
		t.Fatalf("expected (500,500), got (%v,%v)", x, y)
	}
}

func TestToScreenPointCentroidInvariant(t *testing.T) {
	origins := [][2]int{{0, 0}, {100, 50}, {-20, 300}}
	for _, origin := range origins {
		wx, wy := origin[0], origin[1]
		sw, sh := 800, 600
		x, y := ToScreenPoint(
			NormalizedPoint{NX: 500, NY: 500},
			ScreenConversion{WindowX: wx, WindowY: wy, ScreenshotW: sw, ScreenshotH: sh, ResizeScale: 1, DPIScale: 1},
		)
		wantX := float64(wx) + float64(sw)/2
		wantY := float64(wy) + float64(sh)/2
		if x != wantX || y != wantY {
			t.Fatalf("origin %v: got (%v,%v), want (%v,%v)", origin, x, y, wantX, wantY)
		}
	}
}
