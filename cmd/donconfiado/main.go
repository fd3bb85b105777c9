// Command donconfiado runs the Don Confiado chat backend.
//
//	@title						Don Confiado API
//	@version					1.1
//	@description				Conversational assistant that registers distributors and products for small Colombian shops.
//	@BasePath					/api
//	@schemes					http https
//	@accept						json
//	@produce					json
//	@securityDefinitions.apikey	IdempotencyKey
//	@in							header
//	@name						Idempotency-Key
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/tbourn/don-confiado-backend/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
