package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/moweilong/tradeclient/cmd/tradectl/app"
	"github.com/moweilong/tradeclient/pkg/apierr"
)

func main() {
	cmd := app.NewTradeCtlCommand()
	if err := cmd.Execute(); err != nil {
		if _, ok := apierr.As(err); ok {
			cmd.PrintErrln(color.RedString("Error: %s", apierr.UserMessage(err)))
		} else {
			cmd.PrintErrln(color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}
