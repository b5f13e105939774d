package main

import (
	"fmt"
	"os"

	"chatbot-crm/internal/app"
)

func main() {
	if err := newRootCmd(app.Build).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
