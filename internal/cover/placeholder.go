package cover

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 400
	placeholderHeight = 600

	// text is drawn at 1/textScale size and scaled up
	textScale    = 3
	maxLineChars = 16
	maxLines     = 8
)

// warmPalette is the set of gradient end colors
var warmPalette = []color.RGBA{
	{0xB3, 0x3F, 0x2E, 0xFF},
	{0xD9, 0x73, 0x3B, 0xFF},
	{0xE8, 0xA8, 0x4F, 0xFF},
	{0x8C, 0x3B, 0x4A, 0xFF},
	{0xC2, 0x5B, 0x56, 0xFF},
	{0x6B, 0x3E, 0x2E, 0xFF},
	{0xF0, 0xC2, 0x7B, 0xFF},
}

// Painter draws placeholder covers
type Painter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPainter picks gradient colors at random
func NewPainter() *Painter {
	return &Painter{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededPainter gives reproducible colors
func NewSeededPainter(seed uint64) *Painter {
	return &Painter{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (p *Painter) colors() (color.RGBA, color.RGBA) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.rng.IntN(len(warmPalette))
	j := p.rng.IntN(len(warmPalette) - 1)
	if j >= i {
		j++
	}
	return warmPalette[i], warmPalette[j]
}

// Paint renders a 400x600 PNG with a vertical gradient and the title
// word-wrapped in the middle.
func (p *Painter) Paint(title string) ([]byte, error) {
	top, bottom := p.colors()
	dst := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	fillGradient(dst, top, bottom)

	layer := image.NewRGBA(image.Rect(0, 0, placeholderWidth/textScale, placeholderHeight/textScale))
	drawTitle(layer, wrapTitle(title, maxLineChars, maxLines))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), layer, layer.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fillGradient(img *image.RGBA, top, bottom color.RGBA) {
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h-1)
		c := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 0xFF,
		}
		draw.Draw(img, image.Rect(0, y, img.Bounds().Dx(), y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func drawTitle(layer *image.RGBA, lines []string) {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 2
	w, h := layer.Bounds().Dx(), layer.Bounds().Dy()
	y := (h-lineHeight*len(lines))/2 + face.Metrics().Ascent.Ceil()

	d := &font.Drawer{Dst: layer, Src: image.White, Face: face}
	for _, line := range lines {
		adv := d.MeasureString(line).Ceil()
		d.Dot = fixed.P((w-adv)/2, y)
		d.DrawString(line)
		y += lineHeight
	}
}

// wrapTitle breaks title into at most maxLines lines of width runes.
// Overlong words are cut and a truncated title ends with "...".
func wrapTitle(title string, width, maxLines int) []string {
	var lines []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
	}

	for _, word := range strings.Fields(title) {
		w := []rune(asciiOnly(word))
		for len(w) > width {
			flush()
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > width {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last) > width-3 {
			last = last[:width-3]
		}
		lines[maxLines-1] = string(last) + "..."
	}
	return lines
}

// asciiOnly maps runes outside basicfont's range to '?'
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7E {
			return '?'
		}
		return r
	}, s)
}
