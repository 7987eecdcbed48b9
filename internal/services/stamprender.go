package services

import (
  "bytes"
  "fmt"
  "hash/fnv"
  "image/color"
  "strings"
  "unicode"

  "github.com/fogleman/gg"
  "github.com/golang/freetype/truetype"
  "golang.org/x/image/font"
  "golang.org/x/image/font/gofont/gobold"
)

// StampRenderer draws the default badge used when a teacher creates a stamp
// without uploading artwork.
type StampRenderer interface {
  Render(name string) (bytes.Buffer, error)
}

type stampRenderer struct {
  size     int
  bgColors []color.NRGBA
  fontFace font.Face
}

var defaultStampColors = []color.NRGBA{
  {R: 0xE5, G: 0x39, B: 0x35, A: 0xFF},
  {R: 0xFB, G: 0x8C, B: 0x00, A: 0xFF},
  {R: 0xFD, G: 0xD8, B: 0x35, A: 0xFF},
  {R: 0x43, G: 0xA0, B: 0x47, A: 0xFF},
  {R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF},
  {R: 0x8E, G: 0x24, B: 0xAA, A: 0xFF},
  {R: 0xD8, G: 0x1B, B: 0x60, A: 0xFF},
  {R: 0x00, G: 0x89, B: 0x7B, A: 0xFF},
}

func NewStampRenderer(size int) (StampRenderer, error) {
  if size <= 0 {
    size = StampImageSize
  }
  ttf, err := truetype.Parse(gobold.TTF)
  if err != nil {
    return nil, fmt.Errorf("failed to parse badge font: %w", err)
  }
  face := truetype.NewFace(ttf, &truetype.Options{Size: float64(size) * 0.36})
  return &stampRenderer{size: size, bgColors: defaultStampColors, fontFace: face}, nil
}

// Render is deterministic: the same name always yields the same colors.
func (sr *stampRenderer) Render(name string) (bytes.Buffer, error) {
  size := float64(sr.size)
  base := sr.bgColors[colorIndex(name, len(sr.bgColors))]

  //1) Round Badge With A Darker Rim
  dc := gg.NewContext(sr.size, sr.size)
  dc.DrawCircle(size/2, size/2, size/2)
  dc.SetColor(lightenOrDarken(base, -0.25))
  dc.Fill()
  dc.DrawCircle(size/2, size/2, size/2*0.88)
  dc.SetColor(base)
  dc.Fill()

  //2) Dashed Inner Ring
  dc.SetDash(size/40, size/60)
  dc.SetLineWidth(size / 80)
  dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 200})
  dc.DrawCircle(size/2, size/2, size/2*0.76)
  dc.Stroke()
  dc.SetDash()

  //3) Initials
  dc.SetFontFace(sr.fontFace)
  dc.SetColor(color.White)
  dc.DrawStringAnchored(stampInitials(name), size/2, size/2, 0.5, 0.35)

  var buf bytes.Buffer
  if err := dc.EncodePNG(&buf); err != nil {
    return buf, fmt.Errorf("failed to encode PNG: %w", err)
  }
  return buf, nil
}

func colorIndex(name string, n int) int {
  h := fnv.New32a()
  _, _ = h.Write([]byte(strings.ToLower(name)))
  return int(h.Sum32() % uint32(n))
}

// stampInitials takes the first letter of up to two words, or the first two
// letters of a single word.
func stampInitials(name string) string {
  words := strings.FieldsFunc(name, func(r rune) bool {
    return unicode.IsSpace(r) || r == '-' || r == '_'
  })
  var out []rune
  switch len(words) {
  case 0:
    return "?"
  case 1:
    runes := []rune(words[0])
    if len(runes) > 2 {
      runes = runes[:2]
    }
    out = runes
  default:
    out = []rune{[]rune(words[0])[0], []rune(words[1])[0]}
  }
  return strings.ToUpper(string(out))
}

func lightenOrDarken(c color.NRGBA, fraction float64) color.NRGBA {
  clamp := func(v float64) uint8 {
    if v < 0 {
      return 0
    }
    if v > 255 {
      return 255
    }
    return uint8(v)
  }
  adjust := func(v uint8) uint8 {
    if fraction >= 0 {
      return clamp(float64(v) + (255-float64(v))*fraction)
    }
    return clamp(float64(v) * (1 + fraction))
  }
  return color.NRGBA{R: adjust(c.R), G: adjust(c.G), B: adjust(c.B), A: c.A}
}
