// robotbus-sim runs a fake robot bus and turns lines read from stdin into
// memory events, so behaviors can be tried without a robot.
//
// Commands:
//
//	touch PART...        raise TouchChanged with PART... pressed
//	release PART...      raise TouchChanged with PART... released
//	mark ID...           raise LandmarkDetected with the given Naomark ids
//	lost                 raise LandmarkDetected with no marks
//	emit EVENT JSON      raise EVENT with a raw JSON payload
//	status               list clients, extractors and spoken text
//	shutdown [REASON]    ask every client to stop
//	quit                 stop the bus
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edwinhayes/naox/naox"
	"github.com/edwinhayes/naox/qi"
	"github.com/edwinhayes/naox/qi/qitest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var listen string
	var logLevel string

	flagSet := pflag.NewFlagSet("robotbus-sim", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "127.0.0.1:"+qi.DefaultPort, "address to serve the bus on")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger := qi.ModuleLogger(qi.NewLogger(logLevel), "robotbus-sim")
	bus, err := qitest.NewBusAt(listen)
	if err != nil {
		return err
	}
	defer bus.Close()
	bus.SetLogger(logger)
	logger.Infof("Robot bus listening on %s", bus.URL)

	return serve(bus, os.Stdin, logger)
}

func serve(bus *qitest.Bus, in io.Reader, logger *logrus.Entry) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quit, err := execute(bus, line)
		if err != nil {
			logger.WithError(err).Errorf("%q failed", line)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func execute(bus *qitest.Bus, line string) (bool, error) {
	command, rest := splitCommand(line)
	args := strings.Fields(rest)
	switch command {
	case "touch", "release":
		if len(args) == 0 {
			return false, errors.Errorf("%s needs at least one body part", command)
		}
		batch := make([]interface{}, 0, len(args))
		for _, part := range args {
			batch = append(batch, []interface{}{part, command == "touch", []interface{}{}})
		}
		return false, bus.EmitValue(naox.TouchChangedEvent, batch)
	case "mark":
		if len(args) == 0 {
			return false, errors.New("mark needs at least one id")
		}
		detection, err := markDetection(time.Now(), args)
		if err != nil {
			return false, err
		}
		return false, bus.EmitValue(naox.LandmarkDetectedEvent, detection)
	case "lost":
		return false, bus.Emit(naox.LandmarkDetectedEvent, "[]")
	case "emit":
		event, payload := splitCommand(rest)
		if event == "" || payload == "" {
			return false, errors.New("emit needs an event and a JSON payload")
		}
		return false, bus.Emit(event, payload)
	case "status":
		fmt.Printf("clients:    %s\n", strings.Join(bus.Clients(), ", "))
		fmt.Printf("extractors: %s\n", strings.Join(bus.Extractors(), ", "))
		fmt.Printf("said:       %q\n", bus.Said())
		return false, nil
	case "shutdown":
		reason := rest
		if reason == "" {
			reason = "shutdown requested"
		}
		bus.Shutdown(reason)
		return false, nil
	case "quit", "exit":
		return true, nil
	}
	return false, errors.Errorf("unknown command %q", command)
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// markDetection builds a LandmarkDetected value with the marks spread
// across the camera's field of view.
func markDetection(now time.Time, ids []string) ([]interface{}, error) {
	marks := make([]interface{}, 0, len(ids))
	for i, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "mark id %q", raw)
		}
		alpha := 0.1 * float64(i)
		shape := []interface{}{1, alpha, 0.0, 0.05, 0.05, 0.0}
		marks = append(marks, []interface{}{shape, []interface{}{id}})
	}
	pose := []interface{}{0.0, 0.0, 0.0, 0.0, 0.0, 0.0}
	timestamp := []interface{}{now.Unix(), now.Nanosecond() / int(time.Microsecond)}
	return []interface{}{timestamp, marks, pose, pose, 0}, nil
}
