package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"shellglance/internal/app"
	"shellglance/internal/command"
)

const usage = `usage: shellglance [global flags] <command> [args]

commands:
  run                         run every enabled command on its schedule and print updates (default)
  once                        run every enabled command once and print the breakdown
  list                        list configured commands
  add [flags] <command text>  add a command
  edit [flags] <id>           change a command
  remove <id>                 delete a command
  enable <id>                 enable a command
  disable <id>                disable a command
  set separator <text>        set the label separator
  set max-length <n>          set the per-command label length (5-200)

ids may be abbreviated to a unique prefix.

global flags:
`

func main() {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "path to config json/yaml (optional)")
	flag.StringVar(&opts.SettingsDriver, "settings", "", "settings driver override: memory|file|sqlite")
	flag.StringVar(&opts.SettingsPath, "settings-path", "", "settings file/database path override")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := dispatch(cmd, args, opts); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func dispatch(cmd string, args []string, opts app.Options) error {
	switch cmd {
	case "run", "once", "list", "add", "edit", "remove", "enable", "disable", "set":
	case "help", "-h", "--help":
		flag.Usage()
		return flag.ErrHelp
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	if cmd == "run" || cmd == "once" {
		a, err := app.New(opts)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if cmd == "once" {
			return a.Once(ctx)
		}
		return a.Run(ctx)
	}

	st, err := app.OpenStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ed := app.NewEditor(st)
	switch cmd {
	case "list":
		return list(os.Stdout, ed)
	case "add":
		return add(os.Stdout, ed, args)
	case "edit":
		return edit(os.Stdout, ed, args)
	case "remove":
		ref, err := oneArg(cmd, args)
		if err != nil {
			return err
		}
		s, err := ed.Remove(ref)
		if err != nil {
			return err
		}
		fmt.Printf("removed %s\n", s.ID)
		return nil
	case "enable", "disable":
		ref, err := oneArg(cmd, args)
		if err != nil {
			return err
		}
		s, err := ed.SetEnabled(ref, cmd == "enable")
		if err != nil {
			return err
		}
		fmt.Printf("%sd %s\n", cmd, s.ID)
		return nil
	default: // set
		return set(ed, args)
	}
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: expected exactly one id", cmd)
	}
	return args[0], nil
}

func list(w io.Writer, ed *app.Editor) error {
	specs, err := ed.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINTERVAL\tTIMEOUT\tENABLED\tCOMMAND")
	for _, s := range specs {
		fmt.Fprintf(tw, "%s\t%s\t%ds\t%ds\t%t\t%s\n", s.ID, s.DisplayName(), s.Interval, s.Timeout, s.Enabled, s.Command)
	}
	return tw.Flush()
}

func add(w io.Writer, ed *app.Editor, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	id := fs.String("id", "", "explicit id (default: random uuid)")
	interval := fs.Int("interval", command.DefaultInterval, "seconds between runs (1-3600)")
	timeout := fs.Int("timeout", command.DefaultTimeout, "seconds before a run is aborted (1-300)")
	disabled := fs.Bool("disabled", false, "add the command disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")

	s, err := ed.Add(command.Spec{
		ID:       *id,
		Name:     *name,
		Command:  text,
		Interval: *interval,
		Timeout:  *timeout,
		Enabled:  !*disabled,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "added %s\n", s.ID)
	return nil
}

func edit(w io.Writer, ed *app.Editor, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	cmdText := fs.String("command", "", "shell command text")
	interval := fs.Int("interval", 0, "seconds between runs (1-3600)")
	timeout := fs.Int("timeout", 0, "seconds before a run is aborted (1-300)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("edit: expected exactly one id")
	}
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })

	s, err := ed.Update(fs.Arg(0), func(s *command.Spec) {
		if seen["name"] {
			s.Name = *name
		}
		if seen["command"] {
			s.Command = *cmdText
		}
		if seen["interval"] {
			s.Interval = *interval
		}
		if seen["timeout"] {
			s.Timeout = *timeout
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "updated %s\n", s.ID)
	return nil
}

func set(ed *app.Editor, args []string) error {
	if len(args) != 2 {
		return errors.New("set: expected <separator|max-length> <value>")
	}
	switch args[0] {
	case "separator":
		return ed.SetSeparator(args[1])
	case "max-length":
		n, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return fmt.Errorf("set max-length: %w", err)
		}
		return ed.SetMaxLength(n)
	default:
		return fmt.Errorf("set: unknown key %q", args[0])
	}
}
