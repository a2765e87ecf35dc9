// Command cli is the interactive FileKeeper client.
package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/filekeeper/internal/client/cli"
	"github.com/dmitrijs2005/filekeeper/internal/client/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	app, err := cli.NewApp(config.LoadConfig())
	if err != nil {
		log.Fatalf("%v", err)
	}
	app.Run(context.Background())
}
