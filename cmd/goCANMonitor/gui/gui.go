package gui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	flayout "fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	gocan "github.com/roffe/gocanapi"
	"go.bug.st/serial/enumerator"
)

type mainWindow struct {
	app    fyne.App
	window fyne.Window

	log *widget.List

	transportList *widget.Select
	portList      *widget.SelectEntry
	speedList     *widget.Select
	channelList   *widget.Select
	rateList      *widget.Select

	startBTN   *widget.Button
	stopBTN    *widget.Button
	refreshBTN *widget.Button
	saveBTN    *widget.Button
}

type appState struct {
	transport string
	port      string
	portSpeed int
	channel   int
	rate      gocan.Bitrate

	sess   *gocan.Session
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	mw      *mainWindow
	logData []string
	state   *appState
)

func init() {
	state = &appState{rate: gocan.Bitrate500K}
}

func Run(ctx context.Context, a fyne.App) {
	a.Settings().SetTheme(&monitorTheme{})

	w := a.NewWindow("goCANMonitor")
	w.Resize(fyne.NewSize(900, 500))

	mw = &mainWindow{
		app:    a,
		window: w,
		log: widget.NewList(
			func() int {
				return len(logData)
			},
			func() fyne.CanvasObject {
				l := widget.NewLabel("template")
				l.TextStyle.Monospace = true
				return l
			},
			func(i widget.ListItemID, o fyne.CanvasObject) {
				o.(*widget.Label).SetText(logData[i])
			},
		),
	}

	mw.transportList = widget.NewSelect(gocan.ListTransportNames(), func(s string) {
		state.transport = s
		a.Preferences().SetString("transport", s)
	})
	mw.portList = widget.NewSelectEntry(ports())
	mw.portList.OnChanged = func(s string) {
		state.port = s
		a.Preferences().SetString("port", s)
	}
	mw.speedList = widget.NewSelect(speeds(), func(s string) {
		speed, err := strconv.Atoi(s)
		if err != nil {
			output("failed to set port speed: " + err.Error())
			return
		}
		state.portSpeed = speed
		a.Preferences().SetString("portSpeed", s)
	})
	mw.channelList = widget.NewSelect(channels(), func(s string) {
		ch, err := strconv.Atoi(s)
		if err != nil {
			output("failed to set channel: " + err.Error())
			return
		}
		state.channel = ch
		a.Preferences().SetInt("channel", ch)
	})
	mw.rateList = widget.NewSelect(bitrates(), func(s string) {
		kbit, err := strconv.ParseFloat(s, 64)
		if err != nil {
			output("failed to set bitrate: " + err.Error())
			return
		}
		rate, err := gocan.BitrateFromKbit(kbit)
		if err != nil {
			output(err.Error())
			return
		}
		state.rate = rate
		a.Preferences().SetString("bitrate", s)
	})

	mw.transportList.PlaceHolder = "Select transport"
	mw.portList.PlaceHolder = "Select port"
	mw.speedList.PlaceHolder = "Select port speed"
	mw.channelList.PlaceHolder = "Select channel"
	mw.rateList.PlaceHolder = "Select bitrate"

	mw.startBTN = widget.NewButton("Start", startMonitor)
	mw.stopBTN = widget.NewButton("Stop", stopMonitor)
	mw.stopBTN.Disable()
	mw.refreshBTN = widget.NewButton("Refresh Ports", func() {
		mw.portList.SetOptions(ports())
		mw.portList.Refresh()
	})
	mw.saveBTN = widget.NewButton("Save Log", saveLog)

	restorePreferences(a)

	left := container.New(flayout.NewMaxLayout(), mw.log)
	right := container.NewVBox(
		mw.transportList,
		mw.portList,
		mw.speedList,
		mw.channelList,
		mw.rateList,
		widget.NewSeparator(),
		mw.startBTN,
		mw.stopBTN,
		widget.NewSeparator(),
		mw.refreshBTN,
		mw.saveBTN,
	)

	split := container.NewHSplit(left, right)
	split.Offset = 0.7
	w.SetContent(split)

	go func() {
		<-ctx.Done()
		w.Close()
	}()

	w.ShowAndRun()
	stopMonitor()
}

func restorePreferences(a fyne.App) {
	p := a.Preferences()
	if v := p.String("transport"); v != "" {
		mw.transportList.SetSelected(v)
	}
	if v := p.String("port"); v != "" {
		mw.portList.SetText(v)
	}
	if v := p.String("portSpeed"); v != "" {
		mw.speedList.SetSelected(v)
	}
	mw.channelList.SetSelected(strconv.Itoa(p.Int("channel")))
	if v := p.String("bitrate"); v != "" {
		mw.rateList.SetSelected(v)
	}
}

func output(s string) {
	text := "\n"
	if s != "" {
		text = fmt.Sprintf("%s - %s\n", time.Now().Format("15:04:05.000"), s)
	}
	logData = append(logData, text)
	mw.log.Refresh()
	mw.log.ScrollToBottom()
}

func speeds() []string {
	var out []string
	l := []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600, 1000000, 2000000}
	for _, ll := range l {
		out = append(out, strconv.Itoa(ll))
	}
	return out
}

func channels() []string {
	var out []string
	for i := 0; i < gocan.DefaultScanLimit; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func bitrates() []string {
	var out []string
	for _, b := range gocan.Bitrates() {
		out = append(out, fmt.Sprintf("%g", b.Kbit()))
	}
	return out
}

func ports() []string {
	var portsList []string
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		output(err.Error())
		return nil
	}
	if len(ports) == 0 {
		output("No serial ports found!")
		return nil
	}
	for _, port := range ports {
		output(fmt.Sprintf("Found port: %s", port.Name))
		if port.IsUSB {
			output(fmt.Sprintf("  USB ID     %s:%s", port.VID, port.PID))
			output(fmt.Sprintf("  USB serial %s", port.SerialNumber))
			portsList = append(portsList, port.Name)
		}
	}
	return portsList
}
