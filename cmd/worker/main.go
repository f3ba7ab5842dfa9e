package main

import (
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker serve | worker sweep")
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = RunServe()
	case "sweep":
		err = RunSweep()
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
}
