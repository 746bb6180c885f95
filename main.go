package main

import (
	_ "time/tzdata"

	"passbridge/app"
)

func main() {
	// timezone is applied inside Run from the automation config
	app.Run()
}
