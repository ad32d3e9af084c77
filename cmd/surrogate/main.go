package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/emit"
	"github.com/funvibe/surrogate/internal/pipeline"
	"github.com/funvibe/surrogate/internal/reflfacts"
	"github.com/funvibe/surrogate/internal/report"
)

const usage = `Usage: %[1]s <command> [arguments]

Commands:
  build [-v] [--watch] [surrogate.yaml]   synthesize surrogates and the library class
  check [-v] [surrogate.yaml]             synthesize and validate without writing
  facts import <refl.log> <facts.db>      store a TamiFlex log in a facts database
  dump <file.sgc>                         print a binary artifact
  serve <addr> <dir>                      run an artifact sink storing into dir
  help                                    show this message

Without a path, surrogate.yaml is searched upwards from the current directory.
`

// flags holds the options shared by build and check.
type flags struct {
	verbose bool
	watch   bool
	path    string
}

func parseFlags(args []string, allowWatch bool) (flags, error) {
	var f flags
	for _, arg := range args {
		switch {
		case arg == "-v" || arg == "--verbose":
			f.verbose = true
		case allowWatch && (arg == "-w" || arg == "--watch"):
			f.watch = true
		case strings.HasPrefix(arg, "-"):
			return f, fmt.Errorf("unknown flag %s", arg)
		case f.path == "":
			f.path = arg
		default:
			return f, fmt.Errorf("unexpected argument %s", arg)
		}
	}
	return f, nil
}

// optionsPath returns path, or the options file found above the working directory.
func optionsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err = config.FindOptions(wd)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no %s found in %s or its parents", config.OptionsFileNames[0], wd)
	}
	return path, nil
}

func runBuild(ctx context.Context, args []string, check bool) error {
	f, err := parseFlags(args, !check)
	if err != nil {
		return err
	}
	rep := report.Stderr(f.verbose)
	path, err := optionsPath(f.path)
	if err != nil {
		return err
	}
	opts, err := config.LoadOptions(path)
	if err != nil {
		return err
	}
	if f.watch {
		return watch(ctx, path, opts, rep)
	}

	p := pipeline.Build()
	if check {
		p = pipeline.Check()
	}
	out, err := pipeline.Run(ctx, p, opts, rep)
	if err != nil {
		return err
	}
	summarize(out, opts, rep, check)
	return nil
}

func summarize(out *pipeline.Context, opts *config.Options, rep *report.Reporter, check bool) {
	counters := out.Output.Counters
	if check {
		fmt.Printf("ok: %d classes, %d methods\n", counters.Classes, counters.Methods)
		return
	}
	dest := opts.Resolve(opts.Output.Dir)
	if opts.Output.Sink != "" {
		dest = opts.Output.Sink
	}
	fmt.Printf("%d classes, %d methods -> %s (%s)\n", counters.Classes, counters.Methods, dest, out.Manifest.Fingerprint)
	rep.Infof("build", "doItAll: %d creations, %d callbacks", out.Output.Stats.Creations, out.Output.Stats.Callbacks)
}

func runFacts(ctx context.Context, args []string) error {
	if len(args) != 3 || args[0] != "import" {
		return fmt.Errorf("usage: facts import <refl.log> <facts.db>")
	}
	facts, err := reflfacts.LoadTamiFlex(args[1])
	if err != nil {
		return err
	}
	db, err := reflfacts.OpenDB(ctx, args[2])
	if err != nil {
		return err
	}
	defer db.Close()
	n, err := db.Import(ctx, facts)
	if err != nil {
		return err
	}
	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d new facts into %s\n", n, args[2])
	for _, k := range reflfacts.Kinds {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}
	return nil
}

func runDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dump <file%s>", emit.BinaryExt)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	msg, err := emit.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return emit.Dump(os.Stdout, msg)
}

func runServe(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: serve <addr> <dir>")
	}
	sink, err := emit.NewSink(args[1])
	if err != nil {
		return err
	}
	rep := report.Stderr(true)
	sink.Received = func(class string, size int) {
		rep.Infof("sink", "%s (%d bytes)", class, size)
	}
	lis, err := net.Listen("tcp", args[0])
	if err != nil {
		return err
	}
	rep.Infof("sink", "listening on %s, storing into %s", lis.Addr(), filepath.Clean(args[1]))

	go func() {
		<-ctx.Done()
		sink.Stop()
	}()
	return sink.Serve(lis)
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0]))
		return errUsage
	}
	switch args[0] {
	case "build":
		return runBuild(ctx, args[1:], false)
	case "check":
		return runBuild(ctx, args[1:], true)
	case "facts":
		return runFacts(ctx, args[1:])
	case "dump":
		return runDump(args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "help", "-help", "--help", "-h":
		fmt.Printf(usage, filepath.Base(os.Args[0]))
		return nil
	default:
		fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0]))
		return fmt.Errorf("unknown command %q", args[0])
	}
}

var errUsage = errors.New("no command given")

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
