package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/tayari/apps/api/di"
	"github.com/trezcool/tayari/core"
)

func main() {
	conf := core.NewConfig()
	conf.Server.DisableReqLogs = true

	ctx := context.Background()
	c, err := di.New(ctx, conf)
	if err != nil {
		log.Fatalf("setting up dependencies: %v", err)
	}

	cli := commandLine{
		conf:         conf,
		learnerSvc:   c.LearnerSvc,
		readinessSvc: c.ReadinessSvc,
		validate:     c.Validate,
		out:          os.Stdout,
	}
	if c.SQLDB != nil {
		cli.db = c.SQLDB.DB
	}

	err = cli.run(os.Args)
	if cerr := c.Close(); cerr != nil {
		log.Printf("closing dependencies: %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
