package cmd

import (
	"context"
	"log"

	"github.com/avast/retry-go"
	"github.com/manifoldco/promptui"
	gocan "github.com/roffe/gocanapi"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "canapitool",
	Short:        "CAN channel swiss army tool",
	Long:         `Scan, send, dump and sniff CAN traffic over any registered transport`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	loadConfigDefaults()
	rootCmd.ExecuteContext(ctx)
}

const (
	flagTransport = "transport"
	flagPort      = "port"
	flagBaudrate  = "baudrate"
	flagChannel   = "channel"
	flagBitrate   = "bitrate"
	flagListen    = "listen"
	flagDebug     = "debug"
	flagLibrary   = "library"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagTransport, "t", "", "transport to use, empty = pick interactively")
	pf.StringP(flagPort, "p", "", "com-port or device name")
	pf.IntP(flagBaudrate, "b", 115200, "com-port baudrate")
	pf.IntP(flagChannel, "c", 0, "channel number")
	pf.Float64P(flagBitrate, "r", 500, "bitrate in kbit/s")
	pf.BoolP(flagListen, "l", false, "listen only, no transmit")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.String(flagLibrary, "", "driver library override")
}

type sessionOpts struct {
	transport string
	port      string
	baudrate  int
	channel   int
	rate      gocan.Bitrate
	mode      gocan.OpMode
	library   string
	debug     bool
}

func getSessionOpts() (*sessionOpts, error) {
	pf := rootCmd.PersistentFlags()
	transport, err := pf.GetString(flagTransport)
	if err != nil {
		return nil, err
	}
	port, err := pf.GetString(flagPort)
	if err != nil {
		return nil, err
	}
	baudrate, err := pf.GetInt(flagBaudrate)
	if err != nil {
		return nil, err
	}
	channel, err := pf.GetInt(flagChannel)
	if err != nil {
		return nil, err
	}
	kbit, err := pf.GetFloat64(flagBitrate)
	if err != nil {
		return nil, err
	}
	rate, err := gocan.BitrateFromKbit(kbit)
	if err != nil {
		return nil, err
	}
	listen, err := pf.GetBool(flagListen)
	if err != nil {
		return nil, err
	}
	library, err := pf.GetString(flagLibrary)
	if err != nil {
		return nil, err
	}
	debug, err := pf.GetBool(flagDebug)
	if err != nil {
		return nil, err
	}
	mode := gocan.ModeDefault
	if listen {
		mode |= gocan.ModeListenOnly
	}
	return &sessionOpts{
		transport: transport,
		port:      port,
		baudrate:  baudrate,
		channel:   channel,
		rate:      rate,
		mode:      mode,
		library:   library,
		debug:     debug,
	}, nil
}

func pickTransport() (string, error) {
	prompt := promptui.Select{
		Label:    "Select transport",
		HideHelp: true,
		Items:    gocan.ListTransportNames(),
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return result, nil
}

func newTransport(opts *sessionOpts) (gocan.Transport, error) {
	name := opts.transport
	if name == "" {
		var err error
		if name, err = pickTransport(); err != nil {
			return nil, err
		}
	}
	return gocan.NewTransport(name, &gocan.Config{
		Debug:        opts.debug,
		Port:         opts.port,
		PortBaudrate: opts.baudrate,
		Library:      opts.library,
	})
}

// openSession binds the configured channel without starting the
// controller, enough for status queries.
func openSession() (*gocan.Session, *sessionOpts, error) {
	opts, err := getSessionOpts()
	if err != nil {
		return nil, nil, err
	}
	tr, err := newTransport(opts)
	if err != nil {
		return nil, nil, err
	}
	sess := gocan.NewSession(tr)
	err = retry.Do(func() error {
		return sess.Open(opts.channel, opts.mode)
	},
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("open retry #%d: %v", n, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, nil, err
	}
	return sess, opts, nil
}

// startSession binds the channel and brings the controller online at
// the configured bitrate.
func startSession() (*gocan.Session, *sessionOpts, error) {
	sess, opts, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Start(opts.rate); err != nil {
		sess.Close()
		return nil, nil, err
	}
	return sess, opts, nil
}
