//go:build cgo

package window

import (
	"context"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/monitoring"
)

// Run opens the window and ticks r at cfg.TPS until the window is closed,
// Escape is pressed or ctx is done. It must be called from the main
// goroutine.
func Run(ctx context.Context, cfg Config, lens *Lens, r Refresher) error {
	if cfg.TPS <= 0 {
		cfg.TPS = DefaultConfig().TPS
	}
	if cfg.Fill == nil {
		cfg.Fill = DefaultConfig().Fill
	}
	if cfg.Outline == nil {
		cfg.Outline = DefaultConfig().Outline
	}
	size := cfg.Size
	if !size.Valid() {
		size = DefaultConfig().Size
	}

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(size.Width, size.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetScreenClearedEveryFrame(true)

	g := &game{ctx: ctx, cfg: cfg, lens: lens, r: r}
	err := ebiten.RunGame(g)
	if err == ebiten.Termination {
		return nil
	}
	return err
}

type game struct {
	ctx  context.Context
	cfg  Config
	lens *Lens
	r    Refresher
}

func (g *game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		monitoring.Logf("[window] closing")
		return ebiten.Termination
	}
	g.r.Refresh()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	c, rx, ry, ok := g.lens.Ellipse()
	if !ok {
		return
	}
	r := float32((rx + ry) / 2)
	vector.DrawFilledCircle(screen, float32(c.X), float32(c.Y), r, g.cfg.Fill, true)
	vector.StrokeCircle(screen, float32(c.X), float32(c.Y), r, 2, g.cfg.Outline, true)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.lens.Resize(geom.Size{Width: outsideWidth, Height: outsideHeight})
	return outsideWidth, outsideHeight
}
