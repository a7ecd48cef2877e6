package gui

import (
	"context"
	"fmt"
	"os"
	"strings"

	gocan "github.com/roffe/gocanapi"
	sdialog "github.com/sqweek/dialog"
)

func checkSelections() bool {
	var out strings.Builder
	if mw.transportList.SelectedIndex() < 0 {
		out.WriteString("Transport\n")
	}
	if mw.rateList.SelectedIndex() < 0 {
		out.WriteString("Bitrate\n")
	}
	if out.Len() > 0 {
		sdialog.Message("Please set the following options:\n%s", out.String()).
			Title("error").
			Error()
		return false
	}
	return true
}

func startMonitor() {
	if !checkSelections() {
		return
	}

	tr, err := gocan.NewTransport(state.transport, &gocan.Config{
		Port:         state.port,
		PortBaudrate: state.portSpeed,
		OnMessage:    output,
		OnError: func(err error) {
			output(err.Error())
		},
	})
	if err != nil {
		output(err.Error())
		return
	}
	sess := gocan.NewSession(tr, gocan.OptOnError(func(err error) {
		output(err.Error())
	}))
	if err := sess.Open(state.channel, gocan.ModeDefault); err != nil {
		output(err.Error())
		return
	}
	if err := sess.Start(state.rate); err != nil {
		output(err.Error())
		sess.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	state.sess = sess
	state.cancel = cancel
	state.done = done

	mw.startBTN.Disable()
	mw.stopBTN.Enable()
	output(fmt.Sprintf("monitoring channel %d at %s", state.channel, state.rate))

	go func() {
		defer close(done)
		count, err := sess.Monitor(ctx, 0, func(f *gocan.Frame) bool {
			output(f.String())
			return true
		})
		if err != nil {
			output(err.Error())
		}
		output(fmt.Sprintf("monitor stopped after %d frames", count))
	}()
}

// stopMonitor cancels the feeder and waits for it to let go of the
// transport before closing the session.
func stopMonitor() {
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	if state.done != nil {
		<-state.done
		state.done = nil
	}
	if state.sess != nil {
		if err := state.sess.Close(); err != nil {
			output(err.Error())
		}
		state.sess = nil
	}
	if mw != nil {
		mw.startBTN.Enable()
		mw.stopBTN.Disable()
	}
}

func saveLog() {
	filename, err := sdialog.File().Filter("Log file", "log").Title("Save log").Save()
	if err != nil {
		output(err.Error())
		return
	}
	if err := os.WriteFile(filename, []byte(strings.Join(logData, "")), 0644); err != nil {
		output(err.Error())
		return
	}
	output("Saved as " + filename)
}
