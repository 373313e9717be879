// Command client runs an interactive visited-countries session against a
// remote server: it resolves the user identity from the host init payload,
// loads the authoritative visited set, and keeps the derived views (count,
// sorted list, overlay) in sync after every confirmed addition.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/visited-atlas/internal/catalog"
	"github.com/example/visited-atlas/internal/controller"
	"github.com/example/visited-atlas/internal/identity"
	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/state"
	"github.com/example/visited-atlas/internal/status"
	"github.com/example/visited-atlas/internal/syncapi"
	"github.com/example/visited-atlas/internal/types"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the sync server")
	featuresPath := flag.String("features", "data/countries.geo.json", "GeoJSON feature source for the overlay")
	initData := flag.String("init-data", os.Getenv("APP_INIT_DATA"), "host init payload carrying the user descriptor")
	timeout := flag.Duration("timeout", 10*time.Second, "per-call network timeout")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("app", "visited-atlas-client").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	user := identity.NewResolver([]byte(*initData), logger).Resolve()

	names, err := catalog.Load(ctx, catalog.HTTPSource{URL: *serverURL + "/all_countries"})
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable, selection input degrades to empty")
	}
	known := types.NewVisitedSet(names...)

	var features []overlay.Feature
	if loaded, err := overlay.LoadFeatures(*featuresPath); err != nil {
		logger.Warn().Err(err).Str("path", *featuresPath).Msg("feature source unavailable, map styling disabled")
	} else {
		features = loaded
	}

	reporter := status.NewReporter(status.SinkFunc(func(msg status.Message, visible bool) {
		if visible {
			fmt.Printf("[%s] %s\n", msg.Severity, msg.Text)
		}
	}), logger)
	defer reporter.Stop()

	proto := syncapi.NewClient(*serverURL, logger, syncapi.WithTimeout(*timeout))
	store := state.New(user, proto, logger)
	ctrl := controller.New(store, features, reporter, logger)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial load failed; use 'reload' to retry")
	}
	printView(ctrl.View())

	runPrompt(ctx, ctrl, known, features, logger)
}

func runPrompt(ctx context.Context, ctrl *controller.Controller, known types.VisitedSet, features []overlay.Feature, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`commands: add <country> | toggle | reload | view | overlay <file.png> | quit`)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "add":
			selection := types.CountryName(arg)
			if selection != "" && known.Len() > 0 && !known.Contains(selection) {
				logger.Warn().Str("country", arg).Msg("not a catalog entry, submitting as-is")
			}
			ctrl.Add(ctx, selection)
			printView(ctrl.View())
		case "toggle":
			if ctrl.ToggleList() {
				printList(ctrl.View())
			} else {
				fmt.Println("list hidden")
			}
		case "reload":
			if err := ctrl.Reload(ctx); err == nil {
				printView(ctrl.View())
			}
		case "view":
			printView(ctrl.View())
		case "overlay":
			writeOverlay(ctrl.View(), features, arg, logger)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func printView(view controller.View) {
	fmt.Printf("visited: %d\n", view.Projection.Count)
	if len(view.Projection.Unmatched) > 0 {
		fmt.Printf("no map match for: %s\n", joinNames(view.Projection.Unmatched))
	}
	if view.ListVisible {
		printList(view)
	}
}

func printList(view controller.View) {
	for _, name := range view.Projection.SortedList {
		fmt.Printf("  - %s\n", name)
	}
}

func writeOverlay(view controller.View, features []overlay.Feature, path string, logger zerolog.Logger) {
	if path == "" {
		fmt.Println("usage: overlay <file.png>")
		return
	}
	if len(features) == 0 {
		fmt.Println("no feature source loaded, cannot render")
		return
	}

	buffer, err := overlay.Render(view.Projection, features)
	if err != nil {
		logger.Error().Err(err).Msg("overlay render failed")
		return
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("write overlay failed")
		return
	}
	fmt.Printf("overlay written to %s (%d visited)\n", path, view.Projection.Count)
}

func joinNames(names []types.CountryName) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = string(name)
	}
	return strings.Join(parts, ", ")
}
