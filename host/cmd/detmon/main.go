// Command detmon prints the error reports and driver events a bluepill
// streams over USART1.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"bluepill-mcal/host/detmon"
	"bluepill-mcal/host/serial"

	"go.uber.org/zap"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", serial.DefaultBaud, "Baud rate")
	replay  = flag.String("replay", "", "Decode a captured byte stream from this file instead of a device")
	verbose = flag.Bool("verbose", false, "Log driver events too")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, sugar); err != nil && err != context.Canceled {
		sugar.Errorw("monitor stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func run(ctx context.Context, logger *zap.SugaredLogger) error {
	var r io.Reader
	follow := false
	if *replay != "" {
		f, err := os.Open(*replay)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	} else {
		port, err := serial.Open(&serial.Config{Device: *device, Baud: *baud, ReadTimeout: serial.DefaultConfig(*device).ReadTimeout})
		if err != nil {
			return err
		}
		defer port.Close()
		if err := port.Flush(); err != nil {
			logger.Warnw("flush failed", "device", port, "error", err)
		}
		logger.Infow("listening", "device", port, "baud", *baud)
		r = port
		follow = true
	}

	m := detmon.New(r, logger)
	m.Follow = follow
	err := m.Run(ctx, nil)
	printSummary(m.Summary())
	return err
}

func printSummary(s detmon.Summary) {
	fmt.Println()
	fmt.Printf("frames=%d crc_errors=%d resyncs=%d missed=%d undecodable=%d events=%d\n",
		s.Frames.Frames, s.Frames.CRCErrors, s.Frames.Resyncs, s.Frames.Lost, s.Bad, s.Events)
	if s.Lost > 0 {
		fmt.Printf("board dropped %d reports\n", s.Lost)
	}

	type row struct {
		text  string
		count int
	}
	var rows []row
	for r, n := range s.Reports {
		rows = append(rows, row{detmon.DescribeReport(r), n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].count > rows[j].count })
	for _, r := range rows {
		fmt.Printf("%6d  %s\n", r.count, r.text)
	}
}
