package main

import (
	"context"
	"log"

	"fyne.io/fyne/v2/app"
	"github.com/roffe/gocanapi/cmd/goCANMonitor/gui"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)
}

func main() {
	a := app.NewWithID("goCANMonitor")
	gui.Run(context.Background(), a)
}
