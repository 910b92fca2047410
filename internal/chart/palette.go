package chart

import (
	"fmt"
	"math"
)

// viridis anchors, sampled evenly from the matplotlib colormap.
var viridis = [][3]float64{
	{0x44, 0x01, 0x54},
	{0x48, 0x28, 0x78},
	{0x3e, 0x4a, 0x89},
	{0x31, 0x68, 0x8e},
	{0x26, 0x82, 0x8e},
	{0x1f, 0x9e, 0x89},
	{0x35, 0xb7, 0x79},
	{0x6d, 0xcd, 0x59},
	{0xb4, 0xde, 0x2c},
	{0xfd, 0xe7, 0x25},
}

// Palette returns n colors ("RRGGBB") spread over the viridis colormap.
func Palette(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		pos := 0.0
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		out[i] = viridisAt(pos)
	}
	return out
}

func viridisAt(pos float64) string {
	pos = math.Max(0, math.Min(1, pos))
	scaled := pos * float64(len(viridis)-1)
	lo := int(math.Floor(scaled))
	if lo >= len(viridis)-1 {
		lo = len(viridis) - 2
	}
	frac := scaled - float64(lo)
	a, b := viridis[lo], viridis[lo+1]
	var rgb [3]int
	for i := range rgb {
		rgb[i] = int(math.Round(a[i] + (b[i]-a[i])*frac))
	}
	return fmt.Sprintf("%02X%02X%02X", rgb[0], rgb[1], rgb[2])
}

// textColor picks black or white text for a fill color.
func textColor(fill string) string {
	var r, g, b int
	if _, err := fmt.Sscanf(fill, "%02X%02X%02X", &r, &g, &b); err != nil {
		return "000000"
	}
	luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if luma > 140 {
		return "000000"
	}
	return "FFFFFF"
}
