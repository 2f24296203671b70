// Command spitrace checks a Saleae logic capture of an SPI bus against the
// frames a configured sequence is expected to produce.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"bluepill-mcal/config"
	"bluepill-mcal/core"
	"bluepill-mcal/spi"

	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
	"go.uber.org/zap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "spitrace - Compare binary Saleae digital captures with an SPI sequence.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	cfgPath := flag.String("config", "spi.json", "SPI configuration file")
	seqName := flag.String("seq", "0", "Sequence name or id")
	fcs := flag.String("f-cs", "digital_0.bin", "Input filename: chip select")
	fclk := flag.String("f-clk", "digital_1.bin", "Input filename: SCK")
	fmosi := flag.String("f-mosi", "digital_2.bin", "Input filename: MOSI")
	unitName := flag.String("unit", "", "Only expect jobs on this unit (SPI1 or SPI2)")
	csName := flag.String("cs", "", "Only expect jobs asserting this chip-select pin, e.g. PA4")
	verbose := flag.Bool("verbose", false, "Log every transaction")
	ib := ibFlag{}
	flag.Var(ib, "ib", "Preload an internal buffer, channel=hexdata (repeatable)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	if !*verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if err := run(log, *cfgPath, *seqName, *fcs, *fclk, *fmosi, *unitName, *csName, ib); err != nil {
		log.Fatal(err)
	}
}

func run(log *zap.SugaredLogger, cfgPath, seqName, fcs, fclk, fmosi, unitName, csName string, ib ibFlag) error {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	doc, err := config.Parse(data)
	if err != nil {
		return err
	}
	cfg, err := config.Load(data)
	if err != nil {
		return err
	}

	seq, ok := doc.SequenceByName(seqName)
	if !ok {
		n, err := strconv.ParseUint(seqName, 10, 8)
		if err != nil {
			return fmt.Errorf("no sequence named %q", seqName)
		}
		seq = spi.SequenceID(n)
	}

	var unit spi.HWUnit
	switch unitName {
	case "":
	case "SPI1", "spi1":
		unit = spi.SPI1
	case "SPI2", "spi2":
		unit = spi.SPI2
	default:
		return fmt.Errorf("unknown unit %q", unitName)
	}
	cs := core.DioChannelInvalid
	if csName != "" {
		if cs, err = core.ParseDioChannel(csName); err != nil {
			return fmt.Errorf("cs %q: %w", csName, err)
		}
	}

	frames, err := expectedFrames(cfg, seq, ib)
	if err != nil {
		return fmt.Errorf("simulate sequence %d: %w", seq, err)
	}
	want := selectJobs(frames, unit, cs)
	for _, f := range want {
		log.Debugw("expected", "job", f.Job, "unit", f.Unit, "cs", f.CS, "mosi", fmt.Sprintf("%x", f.Bytes))
	}

	txs, err := scan(fclk, fcs, fmosi)
	if err != nil {
		return err
	}
	got := make([][]byte, len(txs))
	for i := range txs {
		got[i] = txs[i].SDO
		log.Debugw("captured", "index", i, "t", txs[i].StartTime(), "mosi", fmt.Sprintf("%x", got[i]))
	}

	runs, bad := compare(want, got)
	for _, m := range bad {
		log.Warnw("mismatch", "index", m.Index, "t", txs[m.Index].StartTime(), "job", m.Job,
			"want", fmt.Sprintf("%x", m.Want), "got", fmt.Sprintf("%x", m.Got))
	}
	log.Infow("done", "sequence", seq, "transactions", len(got), "runs", runs, "mismatches", len(bad))
	if len(bad) > 0 {
		return fmt.Errorf("%d of %d transactions differ", len(bad), len(got))
	}
	return nil
}

func scan(fclk, fcs, fmosi string) ([]analyzers.TxSPI, error) {
	clk, err := openDigital(fclk)
	if err != nil {
		return nil, err
	}
	cs, err := openDigital(fcs)
	if err != nil {
		return nil, err
	}
	mosi, err := openDigital(fmosi)
	if err != nil {
		return nil, err
	}
	var an analyzers.SPI
	txs, _ := an.Scan(clk, cs, mosi, mosi)
	return txs, nil
}

func openDigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return saleae.ReadDigitalFile(fp)
}
