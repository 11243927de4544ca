// forgegen generates typed template references from a definition directory.
//
//	forgegen -dir ./fixtures -pkg fixtures -o ./fixtures/refs_gen.go
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/syssam/forge/gen"
	"github.com/syssam/forge/load"
)

func main() {
	var (
		dir = flag.String("dir", ".", "definition directory to read")
		pkg = flag.String("pkg", "fixtures", "generated package name")
		out = flag.String("o", "", "output file (default stdout)")
	)
	flag.Parse()

	defs, err := load.Directory(*dir)
	if err != nil {
		fail(err)
	}
	cfg, err := gen.NewConfig(gen.WithPackage(*pkg))
	if err != nil {
		fail(err)
	}
	src, err := gen.Generate(cfg, defs.Templates, defs.Scenarios)
	if err != nil {
		fail(err)
	}
	if *out == "" {
		os.Stdout.Write(src)
		return
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "forgegen: %v\n", err)
	os.Exit(1)
}
