// Package imggen 图片生成模块
package imggen

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// StatItem 卡片上的一项数据
type StatItem struct {
	Label string
	Value string
}

// StatsCard 统计卡片配置
type StatsCard struct {
	Title       string
	Subtitle    string
	Items       []StatItem
	GeneratedAt time.Time
}

var (
	bgTop        = color.RGBA{30, 60, 114, 255}
	bgBottom     = color.RGBA{25, 25, 35, 255}
	cardColor    = color.RGBA{35, 35, 50, 200}
	textColor    = color.RGBA{255, 255, 255, 255}
	subTextColor = color.RGBA{180, 180, 180, 255}
	accentColor  = color.RGBA{138, 43, 226, 255}
	valueColor   = color.RGBA{255, 215, 0, 255}
)

const (
	cardWidth    = 520
	headerHeight = 100
	rowHeight    = 44
	footerHeight = 40
	padding      = 20
)

// Render 渲染为 PNG，内置字体仅支持 ASCII
func (c StatsCard) Render() ([]byte, error) {
	height := headerHeight + len(c.Items)*rowHeight + footerHeight + padding*2

	dc := gg.NewContext(cardWidth, height)
	dc.SetFontFace(basicfont.Face7x13)

	drawBackground(dc, cardWidth, height)
	drawHeader(dc, c.Title, c.Subtitle)

	y := float64(headerHeight + padding)
	for _, item := range c.Items {
		drawRow(dc, y, item)
		y += rowHeight
	}

	dc.SetColor(subTextColor)
	footer := fmt.Sprintf("generated %s", c.GeneratedAt.Format("2006-01-02 15:04"))
	dc.DrawStringAnchored(footer, cardWidth/2, float64(height-footerHeight/2), 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBackground 纵向渐变背景
func drawBackground(dc *gg.Context, width, height int) {
	for y := 0; y < height; y++ {
		t := float64(y) / float64(height)
		r := uint8(float64(bgTop.R)*(1-t) + float64(bgBottom.R)*t)
		g := uint8(float64(bgTop.G)*(1-t) + float64(bgBottom.G)*t)
		b := uint8(float64(bgTop.B)*(1-t) + float64(bgBottom.B)*t)
		dc.SetColor(color.RGBA{r, g, b, 255})
		dc.DrawRectangle(0, float64(y), float64(width), 1)
		dc.Fill()
	}
}

func drawHeader(dc *gg.Context, title, subtitle string) {
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, cardWidth/2, 40, 0.5, 0.5)

	dc.SetColor(subTextColor)
	dc.DrawStringAnchored(subtitle, cardWidth/2, 66, 0.5, 0.5)

	dc.SetColor(accentColor)
	dc.SetLineWidth(2)
	dc.DrawLine(40, 90, cardWidth-40, 90)
	dc.Stroke()
}

func drawRow(dc *gg.Context, y float64, item StatItem) {
	x, w, h := float64(padding), float64(cardWidth-2*padding), float64(rowHeight-8)

	dc.SetColor(cardColor)
	dc.DrawRoundedRectangle(x, y, w, h, 8)
	dc.Fill()

	dc.SetColor(textColor)
	dc.DrawStringAnchored(item.Label, x+16, y+h/2, 0, 0.5)

	dc.SetColor(valueColor)
	dc.DrawStringAnchored(item.Value, x+w-16, y+h/2, 1, 0.5)
}
