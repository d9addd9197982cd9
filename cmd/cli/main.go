package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/textshr/internal/client"
	"github.com/dmitrijs2005/textshr/internal/client/cli"
)

func main() {

	server := flag.String("server", "http://127.0.0.1:8080", "textshr server base URL")
	flag.Parse()

	api, err := client.New(*server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	app := cli.NewApp(api, os.Stdout)
	if err := app.Run(context.Background(), flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

}
