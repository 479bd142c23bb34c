// naox-touch greets, reports every touch and landmark it sees and exits
// once the front of the head is touched.
package main

import (
	"fmt"
	"os"

	"github.com/edwinhayes/naox/naox"
	"github.com/spf13/pflag"
)

type touchDemo struct {
	*naox.Behavior
	marks bool
}

func (d *touchDemo) OnActivate() {
	if err := d.Say("Touch my head to stop"); err != nil {
		d.Logger().WithError(err).Warn("Greeting failed")
	}

	_, err := d.OnBodyTouched(func(part string) {
		fmt.Printf("touched %s\n", part)
	}, "")
	if err != nil {
		d.Logger().WithError(err).Error("Failed to subscribe to touches")
	}

	if d.marks {
		_, err := d.OnMarkDetected(func(detection naox.MarkDetection) {
			for _, mark := range detection.Marks {
				fmt.Printf("mark %d at alpha=%.3f beta=%.3f\n", mark.ID, mark.Alpha, mark.Beta)
			}
		})
		if err != nil {
			d.Logger().WithError(err).Error("Failed to start landmark detection")
		}
	}

	go func() {
		part, err := d.AwaitTouch(naox.HeadFrontTouch)
		if err != nil {
			d.Logger().WithError(err).Error("Waiting for head touch failed")
		} else {
			d.Say("Goodbye")
			fmt.Printf("%s touched, stopping\n", part)
		}
		d.Deactivate()
		d.Application().Stop()
	}()
}

func (d *touchDemo) OnDeactivate() {
	if err := d.ClearSubscriptions(); err != nil {
		d.Logger().WithError(err).Warn("Failed to clear subscriptions")
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var name string
	var address string
	var logLevel string
	var marks bool

	flagSet := pflag.NewFlagSet("naox-touch", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "TOML configuration file")
	flagSet.StringVar(&name, "name", "naox_touch", "application name")
	flagSet.StringVar(&address, "address", "", "robot bus address, host:port or tcp://host:port")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&marks, "marks", false, "also report Naomarks")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg := naox.DefaultConfig()
	if configPath != "" {
		loaded, err := naox.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if configPath == "" || flagSet.Changed("name") {
		cfg.Name = name
	}
	if flagSet.Changed("address") {
		cfg.Address = address
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	app, err := naox.NewWithConfig(cfg)
	if err != nil {
		return err
	}

	demo := &touchDemo{marks: marks}
	demo.Behavior, err = naox.NewBehavior(app, demo)
	if err != nil {
		app.Close()
		return err
	}
	return app.Run(demo)
}
