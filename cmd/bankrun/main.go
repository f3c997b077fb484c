package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/julianzamt/bankrun-counter/cmd/bankrun/pda"
	"github.com/julianzamt/bankrun-counter/cmd/bankrun/scenario"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "bankrun",
	Short: "in-process ledger for the counter program",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&pda.Cmd,
		&scenario.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
