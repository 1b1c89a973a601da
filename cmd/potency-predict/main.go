// Command potency-predict loads the persisted linear model and prints the
// predicted potency for one EC50 value.
//
// Usage:
//
//	potency-predict -config potency.yaml -ec50 12.5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MikeSquared-Agency/Potency/internal/config"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	ec50 := flag.String("ec50", "", "EC50 value in nM")
	verbose := flag.Bool("v", false, "print model details")
	flag.Parse()

	if err := run(*configPath, *ec50, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, raw string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logging.Logger(os.Stderr)

	x, err := predictor.ValidateEC50Input(raw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := store.Open(ctx, store.Options{
		Backend:     cfg.Model.Store,
		Name:        cfg.Model.Name,
		Path:        cfg.Model.Path,
		DatabaseURL: cfg.Database.URL,
		SQLiteDSN:   cfg.Model.SQLiteDSN,
	})
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	defer models.Close()

	lm, err := models.Load(ctx)
	if errors.Is(err, store.ErrModelNotFound) {
		return fmt.Errorf("no saved model at %s: upload a dataset with the linear strategy first", models.Location())
	}
	if err != nil {
		return err
	}
	logger.Debug("model loaded", "location", models.Location(), "formula", lm.Formula())

	if verbose {
		fmt.Printf("model:   %s\n", lm.Formula())
		fmt.Printf("metrics: mse=%.4f r2=%.4f train=%d test=%d\n",
			lm.Metrics.MSE, lm.Metrics.R2, lm.Metrics.TrainSize, lm.Metrics.TestSize)
	}
	fmt.Println(predictor.FormatPrediction(lm.Predict(x)))
	return nil
}
