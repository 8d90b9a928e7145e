package compose

import (
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Wrap breaks text into lines no wider than maxWidth, greedily, word by word.
// A word that is wider than maxWidth on its own gets a line to itself.
// Newlines in text start new lines.
func Wrap(measure func(string) float64, text string, maxWidth float64) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if candidate := line + " " + w; measure(candidate) <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		lines = append(lines, line)
	}
	return lines
}

// FontSet holds the faces used for captions. Script is the handwritten style.
type FontSet struct {
	Regular *truetype.Font
	Bold    *truetype.Font
	Italic  *truetype.Font
	Script  *truetype.Font
}

// DefaultFonts returns the Go fonts, with Go Italic standing in for the script face.
func DefaultFonts() FontSet {
	italic := mustParse(goitalic.TTF)
	return FontSet{
		Regular: mustParse(goregular.TTF),
		Bold:    mustParse(gobold.TTF),
		Italic:  italic,
		Script:  italic,
	}
}

// LoadFonts returns the default fonts with Script replaced by the TTF at
// handwrittenPath, if one is given.
func LoadFonts(handwrittenPath string) (FontSet, error) {
	fonts := DefaultFonts()
	if handwrittenPath == "" {
		return fonts, nil
	}
	data, err := os.ReadFile(handwrittenPath)
	if err != nil {
		return fonts, err
	}
	script, err := truetype.Parse(data)
	if err != nil {
		return fonts, err
	}
	fonts.Script = script
	return fonts, nil
}

func mustParse(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(err)
	}
	return f
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}
