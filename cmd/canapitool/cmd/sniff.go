package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jroimartin/gocui"
	gocan "github.com/roffe/gocanapi"
	"github.com/roffe/gocanapi/cmd/canapitool/pkg/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sniffCmd)
}

var filter = &ui.Input{
	Name:      "filter",
	Title:     "Filter",
	X:         0,
	Y:         9,
	W:         25,
	MaxLength: 30,
}

var (
	sniffMu      sync.Mutex
	sniffFilters []uint32
	sniffLines   int64
	sniffCount   int64
)

// maxSniffLines stops the packet view from eating all memory on a busy
// bus, frames are still counted while the view is saturated.
const maxSniffLines = 50000

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "interactive bus sniffer",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := getSessionOpts()
		if err != nil {
			return err
		}
		name := opts.transport
		if name == "" {
			if name, err = pickTransport(); err != nil {
				return err
			}
		}

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		g.Cursor = true
		defer g.Close()

		g.SetManagerFunc(sniffLayout)
		if err := initKeybindings(g); err != nil {
			return err
		}

		tuiLog := func(msg string) {
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View("errors")
				if err != nil {
					return err
				}
				fmt.Fprintln(v, msg)
				return nil
			})
		}

		tr, err := gocan.NewTransport(name, &gocan.Config{
			Debug:        opts.debug,
			Port:         opts.port,
			PortBaudrate: opts.baudrate,
			Library:      opts.library,
			OnMessage:    tuiLog,
			OnError:      func(err error) { tuiLog(err.Error()) },
		})
		if err != nil {
			return err
		}
		sess := gocan.NewSession(tr, gocan.OptOnError(func(err error) {
			tuiLog(err.Error())
		}))
		if err := sess.Open(opts.channel, opts.mode); err != nil {
			return err
		}
		defer sess.Close()
		if err := sess.Start(opts.rate); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go sniffFeeder(ctx, sess, g, name, opts)

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func inFilters(identifier uint32) bool {
	sniffMu.Lock()
	defer sniffMu.Unlock()
	if len(sniffFilters) == 0 {
		return true
	}
	for _, id := range sniffFilters {
		if id == identifier {
			return true
		}
	}
	return false
}

func sniffFeeder(ctx context.Context, sess *gocan.Session, g *gocui.Gui, name string, opts *sessionOpts) {
	sess.Monitor(ctx, 0, func(frame *gocan.Frame) bool {
		atomic.AddInt64(&sniffCount, 1)
		if !inFilters(frame.Identifier) {
			return true
		}
		if atomic.LoadInt64(&sniffLines) > maxSniffLines {
			return true
		}
		f := *frame
		g.Update(func(g *gocui.Gui) error {
			packets, err := g.View("packets")
			if err != nil {
				return err
			}
			info, err := g.View("info")
			if err != nil {
				return err
			}
			info.Clear()
			fmt.Fprintf(info, "transport: %s\n", name)
			fmt.Fprintf(info, "channel: %d\n", opts.channel)
			fmt.Fprintf(info, "bitrate: %s\n", opts.rate)
			fmt.Fprintln(info)
			fmt.Fprintf(info, "frames: %d\n", atomic.LoadInt64(&sniffCount))
			fmt.Fprintf(info, "in buffer: %d\n", atomic.LoadInt64(&sniffLines))

			fmt.Fprintf(packets, " %s || %s\n", time.Now().Format("15:04:05.00000"), f.String())
			atomic.AddInt64(&sniffLines, 1)
			return nil
		})
		return true
	})
}

func sniffLayout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("info", 0, 0, 25, 8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = false
		v.Title = "Info"
	}

	if err := filter.Layout(g); err != nil {
		return err
	}

	if v, err := g.SetView("help", 0, 12, 25, 18); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = false
		v.Wrap = true
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<Space> Autoscroll")
		fmt.Fprintln(v, "<Ctrl-F> Set filter")
		fmt.Fprintln(v, "<C> Clear view")
	}

	if v, err := g.SetView("errors", 0, 19, 25, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = true
		v.Wrap = true
		v.Title = "Errors"
	}

	if v, err := g.SetView("packets", 26, 0, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.SelFgColor = gocui.ColorCyan
		v.Autoscroll = true
		v.Highlight = true
		v.Title = "Frame view"
		if _, err := g.SetCurrentView("packets"); err != nil {
			return err
		}
	}

	return nil
}

func up(g *gocui.Gui, v *gocui.View) error {
	v.MoveCursor(0, -1, false)
	return nil
}

func down(g *gocui.Gui, v *gocui.View) error {
	v.MoveCursor(0, 1, false)
	return nil
}

func flipAutoscroll(g *gocui.Gui, v *gocui.View) error {
	v.Autoscroll = !v.Autoscroll
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

// setFilter parses the filter view into a list of identifiers, empty
// input clears the filter. Values prefixed 0x are read as hex,
// everything else as decimal.
func setFilter(g *gocui.Gui, v *gocui.View) error {
	buff := strings.TrimRight(v.Buffer(), "\n")
	sniffMu.Lock()
	defer sniffMu.Unlock()
	sniffFilters = []uint32{}
	if len(buff) == 0 {
		if _, err := g.SetCurrentView("packets"); err != nil {
			return err
		}
		return nil
	}
	for _, p := range strings.Split(buff, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		base := 10
		if strings.HasPrefix(p, "0x") || strings.HasPrefix(p, "0X") {
			p = p[2:]
			base = 16
		}
		parsed, err := strconv.ParseUint(p, base, 32)
		if err != nil {
			if ev, errr := g.View("errors"); errr == nil {
				fmt.Fprintln(ev, err)
			}
			continue
		}
		sniffFilters = append(sniffFilters, uint32(parsed))
	}
	if ev, err := g.View("errors"); err == nil {
		fmt.Fprintf(ev, "filter set to %d\n", sniffFilters)
	}
	if _, err := g.SetCurrentView("packets"); err != nil {
		return err
	}
	return nil
}

func initKeybindings(g *gocui.Gui) error {
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeyCtrlF, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			if _, err := g.SetCurrentView("filter"); err != nil {
				return err
			}
			return nil
		}); err != nil {
		return err
	}

	if err := g.SetKeybinding("filter", gocui.KeyEnter, gocui.ModNone, setFilter); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", 'c', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			atomic.StoreInt64(&sniffLines, 0)
			v.Autoscroll = true
			v.Clear()
			v.SetOrigin(0, 0)
			return nil
		},
	); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeyHome, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			cx, cy := v.Cursor()
			v.Autoscroll = false
			v.SetOrigin(0, 0)
			v.SetCursor(cx, cy)
			return nil
		},
	); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeyEnd, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = false
			cx, cy := v.Cursor()
			_, y := v.Size()
			v.SetOrigin(0, len(v.BufferLines())-y+1)
			v.SetCursor(cx, cy)
			return nil
		},
	); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeySpace, gocui.ModNone, flipAutoscroll); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeyArrowUp, gocui.ModNone, up); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", gocui.KeyArrowDown, gocui.ModNone, down); err != nil {
		return err
	}

	if err := g.SetKeybinding("packets", gocui.KeyPgup, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, -10, false)
			return nil
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", gocui.KeyPgdn, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, 10, false)
			return nil
		}); err != nil {
		return err
	}

	return nil
}
