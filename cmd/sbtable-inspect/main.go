// Command sbtable-inspect builds and inspects sbtable table files from the
// command line, in the spirit of storage-bench's flag-driven harness but
// scoped to the table format itself rather than a full engine.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/config"
	"github.com/coredb-io/sbtable/pkg/sbm"
	"github.com/coredb-io/sbtable/pkg/sbtable"
	"github.com/coredb-io/sbtable/pkg/tablelog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sbtable-inspect <build|get|scan> [flags]")
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	base := fs.String("table", "", "base path for the table file triad (required)")
	input := fs.String("input", "-", "tab-separated key/value input file, '-' for stdin")
	maxIndexBlock := fs.Uint("max-index-block-bytes", uint(config.NewDefaultConfig().MaxIndexBlockSizeBytes), "index/leaf block size threshold")
	compression := fs.String("compression", "none", "block compression: none, snappy, zstd")
	bloomRate := fs.Float64("bloom-fp-rate", 0.01, "target bloom filter false positive rate, 0 to disable")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	if *base == "" {
		fmt.Fprintln(os.Stderr, "build: -table is required")
		os.Exit(2)
	}

	codec, err := parseCodec(*compression)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(2)
	}

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintln(os.Stderr, "build: open input:", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	lines, err := readLines(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build: read input:", err)
		os.Exit(1)
	}

	cfgOpts := []config.Option{
		config.WithMaxIndexBlockSizeBytes(uint32(*maxIndexBlock)),
		config.WithCompression(codec),
		config.WithBloomFalsePositiveRate(*bloomRate),
	}
	cfg := config.NewDefaultConfig(cfgOpts...)

	var logger tablelog.Logger = tablelog.Noop{}
	if *verbose {
		logger = tablelog.NewStandard(os.Stderr, tablelog.LevelDebug)
	}

	w, err := sbtable.NewWriter(*base, len(lines), cfg, sbtable.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "build: create writer:", err)
		os.Exit(1)
	}

	for _, line := range lines {
		k, v, err := splitKV(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "build:", err)
			os.Exit(1)
		}
		if err := w.Add(sbm.Key{Bytes: []byte(k)}, sbm.Value(v)); err != nil {
			fmt.Fprintln(os.Stderr, "build: add:", err)
			os.Exit(1)
		}
	}

	if err := w.Finish(); err != nil {
		fmt.Fprintln(os.Stderr, "build: finish:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d entries to %s{.data,.index,.filter}\n", len(lines), *base)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	base := fs.String("table", "", "base path for the table file triad (required)")
	key := fs.String("key", "", "key to look up (required)")
	fs.Parse(args)

	if *base == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "get: -table and -key are required")
		os.Exit(2)
	}

	r, err := sbtable.Open(*base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get: open:", err)
		os.Exit(1)
	}
	defer r.Close()

	value, err := r.Get(sbm.Key{Bytes: []byte(*key)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	fmt.Println(string(value))
}

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	base := fs.String("table", "", "base path for the table file triad (required)")
	fs.Parse(args)

	if *base == "" {
		fmt.Fprintln(os.Stderr, "scan: -table is required")
		os.Exit(2)
	}

	r, err := sbtable.Open(*base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan: open:", err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Printf("entries: %d\n", r.NumEntries())

	it, err := r.NewIterator()
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan: iterate:", err)
		os.Exit(1)
	}
	defer it.Close()

	for it.Next() {
		e := it.Entry()
		fmt.Printf("%s\t%s\n", e.Key.Bytes, e.Value)
	}
	if err := it.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
}

func parseCodec(s string) (blockfile.Codec, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return blockfile.CodecNone, nil
	case "snappy":
		return blockfile.CodecSnappy, nil
	case "zstd":
		return blockfile.CodecZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression codec %q", s)
	}
}

func readLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func splitKV(line string) (string, string, error) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed input line %q: expected key<TAB>value", line)
	}
	return parts[0], parts[1], nil
}
