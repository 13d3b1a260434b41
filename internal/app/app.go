package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/spf13/pflag"

	"triagebot/internal/analytics"
	"triagebot/internal/config"
	"triagebot/internal/digest"
	"triagebot/internal/domain"
	"triagebot/internal/httpx"
	llm "triagebot/internal/integrations/llm"
	slackbot "triagebot/internal/integrations/slack"
	"triagebot/internal/render"
	"triagebot/internal/storage/csvstore"
	"triagebot/internal/storage/sqlite"
	"triagebot/internal/triage"
)

type Config = config.Config

// Overridden in tests.
var (
	loadConfig  = config.Load
	newAnalyzer = func(cfg Config) triage.Analyzer {
		return llm.NewClient(cfg, httpx.ExternalHTTPClient())
	}
)

const usage = `Usage: triagebot [command] [flags]

Commands:
  serve                      Run the Slack bot and digest scheduler (default)
  analyze [--model m] [--ab] [text]
                             Triage ticket text (reads stdin when no text is given)
  history [--limit n]        Show the most recent tickets
  stats [--unit u] [--split-days d] [--window n]
                             Show ticket analytics
`

// Main runs the command named on the process command line.
func Main() {
	if err := Run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// Run dispatches a CLI invocation. args excludes the program name.
func Run(args []string, stdin io.Reader, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "serve":
		err = serve()
	case "analyze":
		err = runAnalyze(args, stdin, stdout)
	case "history":
		err = runHistory(args, stdout)
	case "stats":
		err = runStats(args, stdout)
	case "help":
		fmt.Fprint(stdout, usage)
	default:
		err = fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	// pflag has already printed the flag usage.
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

// setup loads configuration, applies the HTTP timeout and opens the
// configured ticket store. The returned close func releases the store.
func setup() (Config, *triage.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return Config{}, nil, nil, err
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Provider=%s Model=%s ABModels=%d Store=%s:%s Timezone=%s ExternalHTTPTimeout=%s",
		cfg.LLMProvider,
		cfg.LLMModel,
		len(cfg.LLMABModels),
		cfg.StoreBackend,
		cfg.StorePath,
		cfg.Timezone,
		appliedHTTPTimeout,
	)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return Config{}, nil, nil, err
	}
	svc := &triage.Service{
		Analyzer:     newAnalyzer(cfg),
		Store:        store,
		Models:       cfg.LLMABModels,
		DefaultModel: cfg.LLMModel,
	}
	return cfg, svc, closeStore, nil
}

func openStore(cfg Config) (triage.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendSQLite:
		store, err := sqlite.Open(cfg.StorePath, cfg.Location)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Ticket store: sqlite at %s", cfg.StorePath)
		return store, func() { _ = store.Close() }, nil
	default:
		log.Printf("Ticket store: csv at %s", cfg.StorePath)
		return csvstore.New(cfg.StorePath, cfg.Location), func() {}, nil
	}
}

func serve() error {
	cfg, svc, closeStore, err := setup()
	if err != nil {
		return err
	}
	defer closeStore()
	if err := cfg.ValidateSlack(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	digest.StartScheduler(ctx, cfg, svc, api)

	log.Println("Starting Support Triage Bot...")
	if err := slackbot.StartSlackBot(ctx, cfg, svc, api); err != nil && ctx.Err() == nil {
		return fmt.Errorf("slack bot error: %w", err)
	}
	log.Println("Support Triage Bot stopped")
	return nil
}

func runAnalyze(args []string, stdin io.Reader, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	model := flagSet.StringP("model", "m", "", "model id (default: llm_model)")
	ab := flagSet.Bool("ab", false, "run every llm_ab_models candidate and compare")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *ab && *model != "" {
		return fmt.Errorf("--model and --ab are mutually exclusive")
	}

	text := strings.Join(flagSet.Args(), " ")
	if strings.TrimSpace(text) == "" || text == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read ticket from stdin: %w", err)
		}
		text = string(data)
	}

	_, svc, closeStore, err := setup()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var session *domain.Session
	if *ab {
		session, err = svc.TriageAB(ctx, text)
	} else {
		session, err = svc.Triage(ctx, text, *model)
	}
	if session != nil && len(session.Results) > 0 {
		fmt.Fprintln(stdout, render.Session(session))
	}
	if err != nil {
		return err
	}
	log.Printf("analyze done models=%s", strings.Join(session.Models(), ","))
	return nil
}

func runHistory(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
	limit := flagSet.IntP("limit", "n", 10, "number of records to show (0 for all)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	_, svc, closeStore, err := setup()
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := svc.History(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, render.History(records))
	return nil
}

func runStats(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	unitFlag := flagSet.StringP("unit", "u", "", "time bucket: hour, day, week or month (default: analytics_unit)")
	splitDays := flagSet.Int("split-days", 0, "category shift window in days (default: analytics_split_days)")
	window := flagSet.Int("window", 0, "recent drift window in tickets (default: analytics_window)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, svc, closeStore, err := setup()
	if err != nil {
		return err
	}
	defer closeStore()

	if !flagSet.Changed("unit") {
		*unitFlag = cfg.AnalyticsUnit
	}
	if !flagSet.Changed("split-days") {
		*splitDays = cfg.AnalyticsSplitDays
	}
	if !flagSet.Changed("window") {
		*window = cfg.AnalyticsWindow
	}
	unit, err := analytics.ParseUnit(*unitFlag)
	if err != nil {
		return err
	}
	if *splitDays < 1 || *window < 1 {
		return fmt.Errorf("--split-days and --window must be at least 1")
	}

	records, err := svc.Snapshot()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, render.Stats(records, render.StatsOptions{Window: *window, SplitDays: *splitDays, Unit: unit}))
	return nil
}
