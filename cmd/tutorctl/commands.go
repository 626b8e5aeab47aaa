package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/service"
	"github.com/noah-isme/tutor-admin/pkg/config"
	"github.com/noah-isme/tutor-admin/pkg/middleware/requestid"
)

var (
	readPasswordFunc = term.ReadPassword
	isTerminalFunc   = term.IsTerminal

	errHelp = errors.New("help provided")
	// errReported marks failures already shown to the user by the notifier.
	errReported = errors.New("error reported")
)

type commandLine struct {
	cfg    *config.Config
	logger *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	app *app
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, `Usage: tutorctl [-ephemeral] [-metrics-file PATH] COMMAND [flags]

Commands:
  login    -username NAME             sign in (password is prompted or read from stdin)
  logout                              discard the stored session
  whoami                              show the signed in user
  list     RESOURCE [-search T] [-sort KEY [-order asc|desc]] [-pages N | -all]
  browse   RESOURCE [-search T] [-sort KEY [-order asc|desc]]   page interactively from stdin
  get      RESOURCE -id ID
  create   RESOURCE -data JSON | -file PATH
  update   RESOURCE -id ID -data JSON | -file PATH
  delete   RESOURCE -id ID
  import   RESOURCE -file PATH.csv
  export   RESOURCE -format csv|pdf [list flags]
  clean-exports [-older-than DURATION]
  download [-group ID | -student ID]  save a feedback PDF
  whatsapp [-student ID | -students ID,ID,...]

Resources: students, groups, lessons, feedbacks`) //nolint:errcheck
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := flag.NewFlagSet("tutorctl", flag.ContinueOnError)
	root.SetOutput(cli.stderr)
	ephemeral := root.Bool("ephemeral", false, "keep the session in memory only")
	metricsFile := root.String("metrics-file", "", "write client metrics in Prometheus text format on exit")
	if len(args) > 0 {
		args = args[1:]
	}
	if err := root.Parse(args); err != nil {
		return errHelp
	}
	rest := root.Args()
	if len(rest) == 0 {
		cli.printUsage()
		return errHelp
	}

	a, err := newApp(ctx, cli.cfg, cli.logger, cli.stdout, cli.stderr, appOptions{ephemeral: *ephemeral, metrics: *metricsFile != ""})
	if err != nil {
		return err
	}
	defer a.close()
	cli.app = a

	// API calls of one invocation share a request id.
	ctx = requestid.WithID(ctx, requestid.Generate())
	err = cli.dispatch(ctx, rest[0], rest[1:])
	if *metricsFile != "" && a.metrics != nil {
		if werr := prometheus.WriteToTextfile(*metricsFile, a.metrics.Registry()); werr != nil {
			cli.logger.Warn("failed to write metrics", zap.Error(werr))
		}
	}
	return err
}

func (cli *commandLine) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return cli.login(ctx, args)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami()
	case "list":
		return cli.list(ctx, args)
	case "browse":
		return cli.browse(ctx, args)
	case "get", "delete":
		return cli.byID(ctx, name, args)
	case "create", "update":
		return cli.write(ctx, name, args)
	case "import":
		return cli.importFile(ctx, args)
	case "export":
		return cli.export(ctx, args)
	case "clean-exports":
		return cli.cleanExports(args)
	case "download":
		return cli.download(ctx, args)
	case "whatsapp":
		return cli.whatsapp(ctx, args)
	case "help", "-h", "--help":
		cli.printUsage()
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.stderr)
	return fs
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.flags("login")
	username := fs.String("username", "", "account username")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *username == "" {
		fs.Usage()
		return errHelp
	}

	password, err := cli.readPassword()
	if err != nil {
		return err
	}
	sess, err := cli.app.sessions.Login(ctx, models.LoginRequest{Username: *username, Password: password})
	if err != nil {
		cli.app.notifier.Error(err)
		return errReported
	}
	cli.app.notifier.Success(fmt.Sprintf("Logged in as %s. Access token valid until %s.",
		sess.Claims.Username, time.Unix(sess.ExpiresAt, 0).Format(time.RFC1123)))
	return nil
}

func (cli *commandLine) readPassword() (string, error) {
	if f, ok := cli.stdin.(*os.File); ok && isTerminalFunc(int(f.Fd())) {
		fmt.Fprint(cli.stdout, "Password: ") //nolint:errcheck
		pwd, err := readPasswordFunc(int(f.Fd()))
		fmt.Fprintln(cli.stdout) //nolint:errcheck
		if err != nil {
			return "", err
		}
		return string(pwd), nil
	}
	line, err := bufio.NewReader(cli.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	cli.app.loggingOut = true
	cli.app.sessions.Logout(ctx)
	cli.app.notifier.Success("Logged out.")
	return nil
}

func (cli *commandLine) whoami() error {
	sess, err := cli.app.sessions.WhoAmI()
	if err != nil {
		cli.app.notifier.Error(err)
		return errReported
	}
	status := "valid"
	if cli.app.store.IsExpired() {
		status = "expired, renewed on next request"
	}
	fmt.Fprintf(cli.stdout, "%s (user %d), access token %s until %s\n", //nolint:errcheck
		sess.Claims.Username, sess.Claims.UserID, status, time.Unix(sess.ExpiresAt, 0).Format(time.RFC1123))
	return nil
}

func listFlags(fs *flag.FlagSet) *listOptions {
	opts := &listOptions{}
	fs.StringVar(&opts.search, "search", "", "case-insensitive search term")
	fs.StringVar(&opts.sort, "sort", "", "sort column")
	fs.StringVar(&opts.order, "order", "asc", "sort direction, asc or desc")
	fs.IntVar(&opts.pages, "pages", 1, "number of pages to load")
	fs.BoolVar(&opts.all, "all", false, "load every page")
	return opts
}

// resource splits the leading resource name from the command's flags.
func (cli *commandLine) resource(fs *flag.FlagSet, args []string) (entityCommands, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fs.Usage()
		return nil, errHelp
	}
	ent, err := cli.app.entity(args[0])
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, errHelp
	}
	return ent, nil
}

func (cli *commandLine) list(ctx context.Context, args []string) error {
	fs := cli.flags("list")
	opts := listFlags(fs)
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}
	return ent.list(ctx, cli.stdout, *opts)
}

func (cli *commandLine) browse(ctx context.Context, args []string) error {
	fs := cli.flags("browse")
	opts := listFlags(fs)
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}
	return ent.browse(ctx, cli.stdin, cli.stdout, *opts)
}

func (cli *commandLine) byID(ctx context.Context, name string, args []string) error {
	fs := cli.flags(name)
	id := fs.Int64("id", 0, "record id")
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}
	if *id <= 0 {
		fs.Usage()
		return errHelp
	}
	if name == "delete" {
		return ent.remove(ctx, *id)
	}
	return ent.show(ctx, cli.stdout, *id)
}

func (cli *commandLine) write(ctx context.Context, name string, args []string) error {
	fs := cli.flags(name)
	id := fs.Int64("id", 0, "record id (update only)")
	data := fs.String("data", "", "record as JSON")
	file := fs.String("file", "", "path to a JSON file holding the record")
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}

	raw := []byte(*data)
	if *file != "" {
		if raw, err = os.ReadFile(*file); err != nil {
			return err
		}
	}
	if len(raw) == 0 || (name == "update" && *id <= 0) {
		fs.Usage()
		return errHelp
	}
	if name == "update" {
		return ent.update(ctx, cli.stdout, *id, raw)
	}
	return ent.create(ctx, cli.stdout, raw)
}

func (cli *commandLine) importFile(ctx context.Context, args []string) error {
	fs := cli.flags("import")
	file := fs.String("file", "", "CSV file with a header row")
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errHelp
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	result, err := ent.importCSV(ctx, f)
	if err != nil {
		return err
	}
	for _, rowErr := range result.Errors {
		fmt.Fprintf(cli.stderr, "  %s\n", rowErr) //nolint:errcheck
	}
	return nil
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := cli.flags("export")
	opts := listFlags(fs)
	rawFormat := fs.String("format", "csv", "csv or pdf")
	ent, err := cli.resource(fs, args)
	if err != nil {
		return err
	}
	format, err := service.ParseExportFormat(*rawFormat)
	if err != nil {
		return err
	}
	result, err := ent.export(ctx, *opts, format)
	if err != nil {
		return err
	}
	cli.app.notifier.Success(fmt.Sprintf("Exported %d rows to %s", result.Rows, result.Path))
	return nil
}

func (cli *commandLine) cleanExports(args []string) error {
	fs := cli.flags("clean-exports")
	olderThan := fs.Duration("older-than", 0, "remove exports older than this (default 168h)")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	exporter, err := cli.app.exportService()
	if err != nil {
		return err
	}
	removed, err := exporter.Cleanup(*olderThan)
	if err != nil {
		return err
	}
	cli.app.notifier.Success(fmt.Sprintf("Removed %d export(s).", len(removed)))
	return nil
}

func (cli *commandLine) download(ctx context.Context, args []string) error {
	fs := cli.flags("download")
	group := fs.Int64("group", 0, "group id")
	student := fs.Int64("student", 0, "student id")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	svc, err := cli.app.feedbackService()
	if err != nil {
		return err
	}
	switch {
	case *group > 0:
		_, err = svc.DownloadGroup(ctx, *group)
	case *student > 0:
		_, err = svc.DownloadStudent(ctx, *student)
	default:
		_, err = svc.DownloadAll(ctx)
	}
	if err != nil {
		return errReported
	}
	return nil
}

func (cli *commandLine) whatsapp(ctx context.Context, args []string) error {
	fs := cli.flags("whatsapp")
	student := fs.Int64("student", 0, "send to one student")
	students := fs.String("students", "", "comma separated student ids, sent in the background with retries")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	svc, err := cli.app.feedbackService()
	if err != nil {
		return err
	}

	switch {
	case *students != "":
		ids, err := parseIDs(*students)
		if err != nil {
			return err
		}
		report, err := svc.SendBulk(ctx, ids)
		if err != nil {
			cli.app.notifier.Error(err)
			return errReported
		}
		for _, f := range report.Failed {
			fmt.Fprintf(cli.stderr, "  student %d: %s\n", f.StudentID, service.Describe(f.Err)) //nolint:errcheck
		}
		if len(report.Failed) > 0 {
			return errReported
		}
		return nil
	case *student > 0:
		_, err = svc.SendToStudent(ctx, *student)
	default:
		_, err = svc.SendToAll(ctx)
	}
	if err != nil {
		return errReported
	}
	return nil
}

func parseIDs(raw string) ([]int64, error) {
	parts := config.SplitAndTrim(raw)
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid student id %q", p)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no student ids given")
	}
	return ids, nil
}
