package platform

// NormalizedPoint is a vendor computer-use coordinate in [0,999] relative
// to a screenshot, per spec §6.
type NormalizedPoint struct {
	NX, NY int
}

// ScreenConversion bundles the parameters needed to map a NormalizedPoint
// back to a screen-pixel coordinate.
type ScreenConversion struct {
	WindowX, WindowY     int
	ScreenshotW, ScreenshotH int
	ResizeScale, DPIScale    float64
}

// ToScreenPoint converts a normalised coordinate to a screen-pixel point:
//
//	screen_x = window_x + (nx/1000 * screenshot_w) / resize_scale / dpi_scale
//	screen_y = window_y + (ny/1000 * screenshot_h) / resize_scale / dpi_scale
func ToScreenPoint(p NormalizedPoint, c ScreenConversion) (x, y float64) {
	x = float64(c.WindowX) + (float64(p.NX)/1000*float64(c.ScreenshotW))/c.ResizeScale/c.DPIScale
	y = float64(c.WindowY) + (float64(p.NY)/1000*float64(c.ScreenshotH))/c.ResizeScale/c.DPIScale
	return x, y
}
