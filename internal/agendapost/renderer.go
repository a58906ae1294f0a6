// Package agendapost renders a day's open slots as a PNG sized for a social
// media story, so professionals can post their availability directly.
package agendapost

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/microagenda/platform/internal/schedule"
)

// Canvas geometry. 1080x1350 is the portrait feed format.
const (
	imageWidth   = 1080
	imageHeight  = 1350
	headerHeight = 260
	footerHeight = 120
	marginX      = 80.0

	chipWidth   = 280.0
	chipHeight  = 90.0
	chipGapX    = 40.0
	chipGapY    = 36.0
	chipsPerRow = 3
	chipRadius  = 18.0

	groupGap = 70.0
)

// Theme is one named color palette.
type Theme struct {
	Background color.Color
	Header     color.Color
	HeaderText color.Color
	GroupText  color.Color
	Chip       color.Color
	ChipText   color.Color
	FooterText color.Color
}

var themes = map[string]Theme{
	"classic": {
		Background: color.RGBA{245, 246, 248, 255},
		Header:     color.RGBA{47, 94, 168, 255},
		HeaderText: color.RGBA{255, 255, 255, 255},
		GroupText:  color.RGBA{80, 85, 90, 255},
		Chip:       color.RGBA{133, 193, 85, 255},
		ChipText:   color.RGBA{20, 24, 28, 255},
		FooterText: color.RGBA{110, 115, 120, 255},
	},
	"dark": {
		Background: color.RGBA{24, 26, 32, 255},
		Header:     color.RGBA{38, 42, 54, 255},
		HeaderText: color.RGBA{235, 238, 245, 255},
		GroupText:  color.RGBA{170, 176, 190, 255},
		Chip:       color.RGBA{86, 156, 214, 255},
		ChipText:   color.RGBA{16, 18, 24, 255},
		FooterText: color.RGBA{120, 126, 140, 255},
	},
}

var groupLabels = []string{"Morning", "Afternoon", "Evening"}

// Input describes one poster.
type Input struct {
	ProfessionalName string
	Date             string // "YYYY-MM-DD"
	Slots            []string
	Theme            string
	BookingURL       string
}

// Render draws the poster and returns encoded PNG bytes.
func Render(in Input) ([]byte, error) {
	day, err := schedule.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}

	theme, ok := themes[in.Theme]
	if !ok {
		theme = themes["classic"]
	}
	groups := schedule.GroupSlots(in.Slots)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(theme.Background)
	dc.Clear()

	drawHeader(dc, theme, in.ProfessionalName, day)

	y := float64(headerHeight) + groupGap
	for i, slots := range [][]string{groups.Morning, groups.Afternoon, groups.Evening} {
		if len(slots) == 0 {
			continue
		}
		y = drawGroup(dc, theme, groupLabels[i], slots, y)
	}
	if len(in.Slots) == 0 {
		dc.SetColor(theme.GroupText)
		dc.DrawStringAnchored("Fully booked today", imageWidth/2, imageHeight/2, 0.5, 0.5)
	}

	drawFooter(dc, theme, in.BookingURL)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("agendapost: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(dc *gg.Context, theme Theme, name string, day schedule.Date) {
	dc.SetColor(theme.Header)
	dc.DrawRectangle(0, 0, imageWidth, headerHeight)
	dc.Fill()

	dc.SetColor(theme.HeaderText)
	dc.DrawStringAnchored(name, imageWidth/2, headerHeight*0.35, 0.5, 0.5)
	dateLine := fmt.Sprintf("%s, %s", day.Weekday().String(), day.String())
	dc.DrawStringAnchored(dateLine, imageWidth/2, headerHeight*0.65, 0.5, 0.5)
}

func drawGroup(dc *gg.Context, theme Theme, label string, slots []string, y float64) float64 {
	dc.SetColor(theme.GroupText)
	dc.DrawStringAnchored(label, marginX, y, 0, 0.5)
	y += chipGapY

	for i, slot := range slots {
		col := i % chipsPerRow
		if i > 0 && col == 0 {
			y += chipHeight + chipGapY
		}
		x := marginX + float64(col)*(chipWidth+chipGapX)

		dc.SetColor(theme.Chip)
		dc.DrawRoundedRectangle(x, y, chipWidth, chipHeight, chipRadius)
		dc.Fill()

		dc.SetColor(theme.ChipText)
		dc.DrawStringAnchored(slot, x+chipWidth/2, y+chipHeight/2, 0.5, 0.5)
	}

	return y + chipHeight + groupGap
}

func drawFooter(dc *gg.Context, theme Theme, bookingURL string) {
	if bookingURL == "" {
		return
	}
	dc.SetColor(theme.FooterText)
	dc.DrawStringAnchored("Book at "+bookingURL, imageWidth/2, imageHeight-footerHeight/2, 0.5, 0.5)
}
