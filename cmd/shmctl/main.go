package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

const usage = `Usage: shmctl [-shm-dir DIR] COMMAND [ARGS]
Inspect and clean up shared-memory channels.

Commands:
  ls [PATTERN]           list channels matching a glob (default *)
  info [-json] NAME      show the state of a channel
  release NAME INDEX     free a slot left behind by a killed consumer
  rm [-force] NAME       remove a channel nobody is attached to
  clean [-force] [PATTERN]
                         remove every idle channel matching PATTERN

Options:
`

var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("shmctl: %v", err)
	}
}

type command func(dir string, args []string, out io.Writer) error

var commands = map[string]command{
	"ls":      list,
	"info":    info,
	"release": release,
	"rm":      remove,
	"clean":   clean,
}

func run(args []string, out io.Writer) error {
	cfg := config.LoadOrDefault()

	fs := flag.NewFlagSet("shmctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	dir := fs.String("shm-dir", cfg.Shm.Dir, "Directory holding shared-memory segments")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, fs.Arg(0))
	}
	return cmd(*dir, fs.Args()[1:], out)
}

func list(dir string, args []string, out io.Writer) error {
	if len(args) > 1 {
		return errUsage
	}
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	infos, err := shmem.List(dir, pattern)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCOUNTER\tSINK\tSOURCES\tMODIFIED")
	for _, in := range infos {
		snap, err := dataflow.Inspect(dir, in.Name)
		if err != nil {
			fmt.Fprintf(w, "%s\t%d\t-\t%v\t-\t%s\n", in.Name, in.Size, err, in.ModTime.Format(time.RFC3339))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\t%s\n",
			in.Name, in.Size, snap.Counter, snap.SinkState, snap.Sources, in.ModTime.Format(time.RFC3339))
	}
	return w.Flush()
}

func info(dir string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: info needs a channel name", errUsage)
	}
	name := fs.Arg(0)

	snap, err := dataflow.Inspect(dir, name)
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := sonic.ConfigStd.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}

	fmt.Fprintf(out, "channel:  %s\n", name)
	fmt.Fprintf(out, "counter:  %d\n", snap.Counter)
	fmt.Fprintf(out, "sink:     %s", snap.SinkState)
	if snap.SinkPID != 0 {
		fmt.Fprintf(out, " (pid %d)", snap.SinkPID)
	}
	fmt.Fprintln(out)
	if snap.Session != "" {
		fmt.Fprintf(out, "session:  %s\n", snap.Session)
	}
	fmt.Fprintf(out, "sources:  %d\n", snap.Sources)
	fmt.Fprintf(out, "payload:  %d/%d bytes\n", snap.PayloadLen, snap.PayloadCap)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tOWNER\tACKED")
	for _, s := range snap.Slots {
		if !s.InUse {
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%d\n", s.Index, s.OwnerPID, s.Acked)
	}
	return w.Flush()
}

func release(dir string, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: release needs a channel name and a slot index", errUsage)
	}
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 || index >= dataflow.NumSlots {
		return fmt.Errorf("%w: slot index must be in [0, %d)", errUsage, dataflow.NumSlots)
	}

	released, err := dataflow.ForceRelease(dir, args[0], index)
	if err != nil {
		return err
	}
	if released {
		fmt.Fprintf(out, "released slot %d of %s\n", index, args[0])
	} else {
		fmt.Fprintf(out, "slot %d of %s was not in use\n", index, args[0])
	}
	return nil
}

func remove(dir string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	force := fs.Bool("force", false, "Remove even if sinks or sources are attached")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: rm needs a channel name", errUsage)
	}

	if err := dataflow.Remove(dir, fs.Arg(0), *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %s\n", fs.Arg(0))
	return nil
}

func clean(dir string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	force := fs.Bool("force", false, "Remove even if sinks or sources are attached")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errUsage
	}

	infos, err := shmem.List(dir, fs.Arg(0))
	if err != nil {
		return err
	}

	var errs []error
	for _, in := range infos {
		err := dataflow.Remove(dir, in.Name, *force)
		switch {
		case err == nil:
			fmt.Fprintf(out, "removed %s\n", in.Name)
		case errors.Is(err, dataflow.ErrBusy):
			fmt.Fprintf(out, "kept %s: in use\n", in.Name)
		default:
			errs = append(errs, fmt.Errorf("%s: %w", in.Name, err))
		}
	}
	return errors.Join(errs...)
}
