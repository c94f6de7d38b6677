package main

import (
	_ "time/tzdata" // IANA zones for hosts without a tz database

	"github.com/vietddude/ratesync/internal/cli"
)

func main() {
	cli.Execute()
}
