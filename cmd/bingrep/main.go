package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	scan_model "github.com/timmattison/bingrep/cmd/bingrep/scan-model"
	"github.com/timmattison/bingrep/internal"
	"github.com/timmattison/bingrep/internal/pattern"
	"github.com/timmattison/bingrep/internal/presenter"
	"github.com/timmattison/bingrep/internal/scan"
	"github.com/timmattison/bingrep/internal/source"
	"github.com/timmattison/bingrep/internal/version"
	"github.com/zeebo/blake3"
)

const toolName = "bingrep"

type options struct {
	path         string
	pattern      *pattern.Pattern
	width        int
	lineLimit    int
	position     int64
	separator    string
	hideOffset   bool
	color        bool
	showProgress bool
	digest       bool
}

func main() {
	var regex, hexPattern, separator, profilePath, profileName string
	var width, lineLimit int
	var position int64
	var hideOffset, color, showProgress, digest, listDrives, verbose, showVersion bool

	flag.StringVar(&regex, "e", "", "Byte regular expression to search for (shorthand)")
	flag.StringVar(&regex, "regex", "", "Byte regular expression to search for, e.g. '\\xFF\\xD8\\xFF[\\xDB\\xE0]'")
	flag.StringVar(&hexPattern, "x", "", "Hex string to search for (shorthand)")
	flag.StringVar(&hexPattern, "hex", "", "Hex string to search for, e.g. f9beb4d9 or 0xf9beb4d9")
	flag.IntVar(&width, "w", 16, "Bytes shown per line (shorthand)")
	flag.IntVar(&width, "width", 16, fmt.Sprintf("Bytes shown per line (1-%d)", scan.MaxWidth))
	flag.IntVar(&lineLimit, "n", 0, "Maximum number of lines (shorthand)")
	flag.IntVar(&lineLimit, "line", 0, "Maximum number of lines, 0 for no limit")
	flag.Int64Var(&position, "s", 0, "Offset to start at (shorthand)")
	flag.Int64Var(&position, "position", 0, "Offset to start at")
	flag.StringVar(&separator, "t", " ", "Separator between bytes (shorthand)")
	flag.StringVar(&separator, "separator", " ", "Separator between bytes")
	flag.BoolVar(&hideOffset, "hideoffset", false, "Do not print the offset of each line")
	flag.BoolVar(&color, "color", false, "Highlight offsets with ANSI colors")
	flag.BoolVar(&showProgress, "progress", false, "Show a progress bar on stderr while stdout is redirected")
	flag.BoolVar(&digest, "digest", false, "Log a BLAKE3 digest of every byte scanned")
	flag.BoolVar(&listDrives, "l", false, "List block devices (shorthand)")
	flag.BoolVar(&listDrives, "list", false, "List block devices that can be scanned")
	flag.StringVar(&profilePath, "profile", "", "YAML file of named patterns")
	flag.StringVar(&profileName, "use", "", "Name of the pattern to use from -profile")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "V", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file | device | image.E01 | ->\n\n", toolName)
		fmt.Fprintf(os.Stderr, "Search a file, raw disk or forensic image for a byte pattern and print each hit as hex.\n")
		fmt.Fprintf(os.Stderr, "Without a pattern the input is dumped as hex.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -x f9beb4d9 blk00000.dat                  # Find a hex signature\n", toolName)
		fmt.Fprintf(os.Stderr, "  %s -e '\\xFF\\xD8\\xFF[\\xDB\\xE0]' -w 32 /dev/sdb  # JPEG headers on a raw disk\n", toolName)
		fmt.Fprintf(os.Stderr, "  %s -s 0x1BE -w 16 -n 4 disk.E01               # Dump the partition table\n", toolName)
		fmt.Fprintf(os.Stderr, "  %s -profile sigs.yaml -use jpeg evidence.E01\n", toolName)
	}

	flag.Parse()

	if showVersion {
		fmt.Println(version.String(toolName))
		os.Exit(exitOK)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: false,
	})

	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	logger.Debug("Starting", "version", version.Short(), "release", version.IsRelease())

	if listDrives {
		if err := printDrives(os.Stdout); err != nil {
			logger.Error("Could not list drives", "error", err)
			os.Exit(exitIO)
		}

		os.Exit(exitOK)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(exitUsage)
	}

	widthSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "w" || f.Name == "width" {
			widthSet = true
		}
	})

	p, profileWidth, err := resolvePattern(regex, hexPattern, profilePath, profileName)
	if err != nil {
		logger.Error("Invalid pattern", "error", err)
		os.Exit(exitCode(err))
	}

	if profileWidth > 0 && !widthSet {
		width = profileWidth
	}

	opts := options{
		path:         flag.Arg(0),
		pattern:      p,
		width:        width,
		lineLimit:    lineLimit,
		position:     position,
		separator:    separator,
		hideOffset:   hideOffset,
		color:        color,
		showProgress: showProgress,
		digest:       digest,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, logger, opts, os.Stdout)
	code := exitCode(err)

	switch code {
	case exitOK:
	case exitInterrupted:
		logger.Warn("Scan interrupted")
	default:
		logger.Error("Scan failed", "error", err)
	}

	stop()
	os.Exit(code)
}

func run(ctx context.Context, logger *log.Logger, opts options, stdout io.Writer) error {
	src, err := source.Open(opts.path)
	if err != nil {
		return err
	}
	defer src.Close()

	logger.Debug("Opened source", "name", src.Name(), "size", src.Size(), "sectorSize", src.SectorSize())

	if image, ok := src.(*source.Image); ok {
		logger.Debug("Expert Witness image", "segments", len(image.Segments()), "chunks", image.ChunkCount())

		for field, value := range image.Metadata() {
			logger.Debug("Acquisition metadata", "field", field, "value", value)
		}
	}

	cfg := scan.Config{
		Pattern:     opts.pattern,
		Width:       opts.width,
		LineLimit:   opts.lineLimit,
		StartOffset: opts.position,
	}

	out := presenter.New(stdout, src.Size(), presenter.Options{
		Separator:  opts.separator,
		ShowOffset: !opts.hideOffset,
		Color:      opts.color,
	})

	hits := 0
	var report func(position int64, hits int)

	scanOpts := []scan.Option{
		scan.WithProgress(func(position int64) {
			if report != nil {
				report(position, hits)
			}
		}),
	}

	var hasher *blake3.Hasher
	if opts.digest {
		hasher = blake3.New()
		scanOpts = append(scanOpts, scan.WithDigest(hasher))
	}

	scanner, err := scan.New(src, cfg, scanOpts...)
	if err != nil {
		return err
	}

	logger.Debug("Scanning", "pattern", patternName(opts.pattern), "width", opts.width, "start", opts.position, "chunkSize", scanner.ChunkSize())

	emit := func(hit scan.Hit) error {
		hits++
		return out.Emit(hit)
	}

	started := time.Now()

	var stats scan.Stats

	if opts.showProgress && progressAvailable(opts.path) {
		stats, err = runWithProgress(ctx, scanner, emit, src, opts, func(r func(int64, int)) { report = r })
	} else {
		if opts.showProgress {
			logger.Warn("Progress display needs a terminal on stderr, redirected stdout and a source other than stdin")
		}

		stats, err = scanner.Run(ctx, emit)
	}

	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}

	if presenter.IsBrokenPipe(err) {
		logger.Debug("Output closed, stopping scan", "hits", hits, "delivered", out.LinesWritten())
		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("Scan complete",
		"source", src.Name(),
		"hits", internal.PrettyPrintInt(int64(stats.Lines)),
		"scanned", internal.PrettyPrintBytes(stats.BytesScanned),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"throughput", scan_model.ThroughputString(internal.GetLocalePrinter(), scan_model.CalculateThroughput(started, time.Now(), stats.BytesScanned)))

	logger.Debug("Scan details",
		"chunks", stats.Chunks,
		"sideReads", stats.SideReads,
		"physicalReads", stats.PhysicalReads,
		"output", internal.PrettyPrintBytes(out.BytesWritten()),
		"outputLines", internal.PrettyPrintInt(out.LinesWritten()))

	if hasher != nil {
		logger.Info("Digest",
			"blake3", hex.EncodeToString(hasher.Sum(nil)),
			"from", opts.position,
			"to", opts.position+stats.BytesScanned)
	}

	return nil
}

// runWithProgress runs the scan on its own goroutine while a bubbletea program
// draws progress on stderr. Ctrl-C in the program cancels the scan.
func runWithProgress(ctx context.Context, scanner *scan.Scanner, emit func(scan.Hit) error, src source.ByteSource, opts options, setReporter func(func(int64, int))) (scan.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := scan_model.ScanModel{
		Printer:     internal.GetLocalePrinter(),
		ProgressBar: progress.New(progress.WithScaledGradient("#FF7CCB", "#FDFF8C")),
		SourceName:  src.Name(),
		PatternName: patternName(opts.pattern),
		SourceSize:  src.Size(),
		StartOffset: opts.position,
		Position:    opts.position,
		Cancel:      cancel,
	}

	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	setReporter(scan_model.Reporter(program, 100*time.Millisecond))

	type outcome struct {
		stats scan.Stats
		err   error
	}

	finished := make(chan outcome, 1)

	go func() {
		stats, err := scanner.Run(ctx, emit)
		finished <- outcome{stats: stats, err: err}
		program.Send(scan_model.ScanFinishedMsg{Stats: stats, Err: err})
	}()

	_, uiErr := program.Run()
	if uiErr != nil {
		cancel()
	}

	result := <-finished

	if result.err == nil && uiErr != nil {
		return result.stats, fmt.Errorf("progress display: %w", uiErr)
	}

	return result.stats, result.err
}

// progressAvailable reports whether a progress display can share the
// terminal: it draws on stderr, hits must not land on the same screen and
// stdin must be free for key input.
func progressAvailable(path string) bool {
	return path != source.Stdin &&
		isatty.IsTerminal(os.Stderr.Fd()) &&
		!isatty.IsTerminal(os.Stdout.Fd())
}

func patternName(p *pattern.Pattern) string {
	if p == nil {
		return "(dump)"
	}

	return p.String()
}

func printDrives(w io.Writer) error {
	drives, err := source.ListDrives()
	if err != nil {
		return err
	}

	for _, drive := range drives {
		fmt.Fprintf(w, "%-24s %12s  %s\n", drive.Path, internal.PrettyPrintBytes(drive.Size), drive.Model)
	}

	return nil
}
