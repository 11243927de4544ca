// forgeseed loads a definition directory and seeds a database through the
// persisted strategy.
//
//	forgeseed -dir ./fixtures -dialect sqlite -dsn "file:dev.db" -scenario base
//
// Without -scenario, the named targets are created instead:
//
//	forgeseed -dir ./fixtures -dialect postgres -dsn "$DATABASE_URL" Post.example_post
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/forge"
	"github.com/syssam/forge/dialect/sql"
	"github.com/syssam/forge/load"
)

func main() {
	var (
		dir      = flag.String("dir", ".", "definition directory to read")
		dialect  = flag.String("dialect", "sqlite", "database dialect: postgres, mysql or sqlite")
		dsn      = flag.String("dsn", "", "database connection string")
		scenario = flag.String("scenario", "", "scenario to run instead of explicit targets")
		debug    = flag.Bool("debug", false, "log every SQL statement")
	)
	flag.Parse()

	if *dsn == "" {
		fail(fmt.Errorf("-dsn is required"))
	}

	drv, err := sql.Open(*dialect, *dsn)
	if err != nil {
		fail(err)
	}
	defer drv.Close()

	defs, err := load.Directory(*dir)
	if err != nil {
		fail(err)
	}
	provider := defs.Provider()
	var driver forge.Strategy
	if *debug {
		driver = forge.NewPersist(sql.NewDebugDriver(drv), provider)
	} else {
		driver = forge.NewPersist(drv, provider)
	}

	store := forge.NewStore(provider, forge.WithDiscovery(load.Discovery(*dir)))
	if err := defs.Register(store); err != nil {
		fail(err)
	}

	engine := forge.New(store, forge.WithStrategy(driver))
	ctx := context.Background()

	var entities map[forge.Ref]any
	switch {
	case *scenario != "":
		entities, err = engine.RunScenario(ctx, *scenario)
	default:
		targets, terr := parseTargets(flag.Args())
		if terr != nil {
			fail(terr)
		}
		entities, err = engine.Run(ctx, targets)
	}
	if err != nil {
		fail(err)
	}
	slog.Info("seed complete", "entities", len(entities))
}

func parseTargets(args []string) ([]forge.Target, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no targets given; pass Kind.name arguments or -scenario")
	}
	targets := make([]forge.Target, 0, len(args))
	for _, a := range args {
		ref := forge.ParseRef(strings.TrimSpace(a))
		if ref.Name == "" {
			return nil, fmt.Errorf("invalid target %q, want Kind.name", a)
		}
		targets = append(targets, forge.Target{Kind: ref.Kind, Name: ref.Name})
	}
	return targets, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "forgeseed: %v\n", err)
	os.Exit(1)
}
