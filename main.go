package main

import (
	"github.com/riftstats/backend-next/cmd/app"
)

func main() {
	app.Run()
}
