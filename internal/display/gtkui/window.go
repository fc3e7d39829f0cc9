package gtkui

import (
	"fmt"

	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/diamondburned/gotk4/pkg/pango"

	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

type windowEvents struct {
	mapped   func()
	unmapped func()
}

// window is one popup surface. Elements sit on a gtk.Fixed at the
// coordinates computed by the display manager.
type window struct {
	id    display.WindowID
	class string

	win     *gtk.Window
	fixed   *gtk.Fixed
	picture *gtk.Picture
	bar     *gtk.ProgressBar
	label   *gtk.Label

	provider *gtk.CSSProvider
	css      string
}

func newWindow(app *adw.Application, d *gdk.Display, mon *gdk.Monitor, id display.WindowID, kind proto.Kind, ev windowEvents) *window {
	w := &window{
		id:       id,
		class:    fmt.Sprintf("thor-window-%d", id),
		provider: gtk.NewCSSProvider(),
	}

	w.win = gtk.NewWindow()
	w.win.SetApplication(&app.Application)
	w.win.SetDecorated(false)
	w.win.SetResizable(false)
	w.win.AddCSSClass("thor-" + kind.String())
	w.win.AddCSSClass(w.class)

	layershell.InitForWindow(w.win)
	layershell.SetLayer(w.win, layershell.LayerShellLayerTop)
	layershell.SetExclusiveZone(w.win, 0)
	layershell.SetKeyboardMode(w.win, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(w.win, "thor-"+kind.String())
	layershell.SetAnchor(w.win, layershell.LayerShellEdgeTop, true)
	layershell.SetAnchor(w.win, layershell.LayerShellEdgeLeft, true)
	if mon != nil {
		layershell.SetMonitor(w.win, mon)
	}

	w.fixed = gtk.NewFixed()
	w.win.SetChild(w.fixed)

	w.picture = gtk.NewPicture()
	w.picture.AddCSSClass(theme.ClassImage)
	w.picture.SetCanShrink(true)
	w.picture.SetKeepAspectRatio(true)
	w.picture.SetVisible(false)
	w.fixed.Put(w.picture, 0, 0)

	w.bar = gtk.NewProgressBar()
	w.bar.AddCSSClass(theme.ClassBar)
	w.bar.SetVisible(false)
	w.fixed.Put(w.bar, 0, 0)

	w.label = gtk.NewLabel("")
	w.label.AddCSSClass(theme.ClassText)
	w.label.SetWrap(true)
	w.label.SetWrapMode(pango.WrapWordChar)
	w.label.SetVisible(false)
	w.fixed.Put(w.label, 0, 0)

	gtk.StyleContextAddProviderForDisplay(d, w.provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)

	w.win.ConnectMap(ev.mapped)
	w.win.ConnectUnmap(ev.unmapped)
	return w
}

// configure moves and resizes the window. Positions are margins from the
// top-left corner of the monitor.
func (w *window) configure(geom theme.Rect) {
	layershell.SetMargin(w.win, layershell.LayerShellEdgeTop, geom.Y)
	layershell.SetMargin(w.win, layershell.LayerShellEdgeLeft, geom.X)
	w.fixed.SetSizeRequest(geom.Width, geom.Height)
	w.win.SetSizeRequest(geom.Width, geom.Height)
	w.win.SetDefaultSize(geom.Width, geom.Height)
}

func (w *window) draw(sc *display.Scene) {
	if css := sc.Theme.CSS(w.class); css != w.css {
		w.provider.LoadFromString(css)
		w.css = css
	}

	if img := sc.Image; img != nil {
		if img.Path != "" {
			w.picture.SetFilename(img.Path)
		} else {
			w.picture.SetPaintable(nil)
		}
		place(w.fixed, w.picture, img.Fit)
		w.picture.SetVisible(true)
	} else {
		w.picture.SetVisible(false)
	}

	if bar := sc.Bar; bar != nil {
		orient := sc.Theme.Bar.Orientation
		if orient.Vertical() {
			w.bar.SetOrientation(gtk.OrientationVertical)
		} else {
			w.bar.SetOrientation(gtk.OrientationHorizontal)
		}
		w.bar.SetInverted(orient.Inverted())
		w.bar.SetFraction(bar.Fraction)
		place(w.fixed, w.bar, bar.Box)
		w.bar.SetVisible(true)
	} else {
		w.bar.SetVisible(false)
	}

	if text := sc.Text; text != nil {
		w.label.SetMarkup(pangoMarkup(text.Lines, sc.Theme.Text.Font))
		switch sc.Theme.Text.Align {
		case theme.AlignLeft:
			w.label.SetJustify(gtk.JustifyLeft)
			w.label.SetXAlign(0)
		case theme.AlignRight:
			w.label.SetJustify(gtk.JustifyRight)
			w.label.SetXAlign(1)
		default:
			w.label.SetJustify(gtk.JustifyCenter)
			w.label.SetXAlign(0.5)
		}
		place(w.fixed, w.label, text.Box)
		w.label.SetVisible(true)
	} else {
		w.label.SetVisible(false)
	}
}

func (w *window) destroy() {
	if d := w.win.Display(); d != nil {
		gtk.StyleContextRemoveProviderForDisplay(d, w.provider)
	}
	w.win.Destroy()
}

func place(fixed *gtk.Fixed, widget gtk.Widgetter, r theme.Rect) {
	gtk.BaseWidget(widget).SetSizeRequest(r.Width, r.Height)
	fixed.Move(widget, float64(r.X), float64(r.Y))
}
