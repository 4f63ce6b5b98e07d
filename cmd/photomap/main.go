package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/textproc"
)

const usage = `Usage:
  photomap render --csv data.csv [--config run.yaml] [--query term [--keep-query]] [--open]
  photomap elbow  --csv data.csv [--kmin 2] [--kmax 20] [--max-points N] [--seed 42]
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	app := config.Load()
	if err := logger.Init(app.LogLevel, app.Development); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "render":
		err = render(ctx, app, os.Args[2:])
	case "elbow":
		err = elbow(ctx, app, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		err = fmt.Errorf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func render(ctx context.Context, app *config.Config, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	csvPath := fs.String("csv", app.DataPath, "cleaned photo CSV")
	configPath := fs.String("config", app.RunConfigPath, "run config YAML")
	query := fs.String("query", "", "search term the dataset was collected with")
	keep := fs.Bool("keep-query", false, "keep the search term eligible for labels")
	mapPath := fs.String("out", app.MapPath, "output map HTML")
	chartDir := fs.String("charts", app.ChartDir, "output chart directory")
	stopwordFile := fs.String("stopwords", app.StopwordFile, "extra stopword YAML")
	open := fs.Bool("open", app.OpenViewer, "open the map when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadRunConfig(*configPath)
	if err != nil {
		return err
	}
	stopwords, err := textproc.LoadStopwords(*stopwordFile)
	if err != nil {
		return err
	}
	ds, err := dataset.LoadCSV(*csvPath, cfg.MaxPoints)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		MapPath:    *mapPath,
		ChartDir:   *chartDir,
		Stopwords:  stopwords,
		OpenViewer: *open,
	})
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, ds, cfg, pipeline.Query{Term: *query, Keep: *keep}, func(pr pipeline.Progress) {
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s %s\n", pr.Percent, pr.Stage, pr.Message)
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d points, %d clusters, %d noise points\n", report.TotalPoints, report.ClusterCount, report.NoisePoints)
	if report.Degenerate != "" {
		fmt.Printf("note: %s\n", report.Degenerate)
	}
	for _, c := range report.Clusters {
		fmt.Printf("  #%-3d %-40s %5d photos  %s\n", c.ID, c.Label, c.Size, c.ChartStatus)
	}
	fmt.Printf("map: %s\n", report.MapPath)
	return nil
}

func elbow(ctx context.Context, app *config.Config, args []string) error {
	fs := flag.NewFlagSet("elbow", flag.ExitOnError)
	csvPath := fs.String("csv", app.DataPath, "cleaned photo CSV")
	kMin := fs.Int("kmin", 2, "smallest k")
	kMax := fs.Int("kmax", 20, "largest k")
	maxPoints := fs.Int("max-points", config.DefaultRunConfig().MaxPoints, "records to use")
	seed := fs.Int64("seed", config.DefaultRunConfig().Seed, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ds, err := dataset.LoadCSV(*csvPath, *maxPoints)
	if err != nil {
		return err
	}
	report, err := pipeline.Elbow(ctx, ds, pipeline.ElbowRequest{KMin: *kMin, KMax: *kMax, MaxPoints: *maxPoints, Seed: *seed})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
