package scenario

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/julianzamt/bankrun-counter/pkg/accounts"
	"github.com/julianzamt/bankrun-counter/pkg/bank"
	"github.com/julianzamt/bankrun-counter/pkg/config"
	"github.com/julianzamt/bankrun-counter/pkg/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "scenario",
		Short: "Run the reference counter flow against a fresh bank",
		Args:  cobra.NoArgs,
		RunE:  run,
	}

	configPath  string
	ledgerDir   string
	metricsAddr string
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Genesis YAML file")
	Cmd.Flags().StringVarP(&ledgerDir, "ledger", "l", "", "Directory of a persistent account store (in-memory if empty)")
	Cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
}

func run(c *cobra.Command, _ []string) error {
	genesis := config.Default()
	if configPath != "" {
		var err error
		genesis, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	cfg := bank.DefaultConfig()
	if ledgerDir != "" {
		store, err := accounts.OpenPersistentAccountsDb(ledgerDir)
		if err != nil {
			return fmt.Errorf("opening ledger %s: %w", ledgerDir, err)
		}
		defer func() {
			util.VerboseHandleError(store.Close())
		}()
		cfg.Accounts = store
	}

	err := genesis.Apply(&cfg)
	if err != nil {
		return err
	}

	b, err := bank.New(cfg)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(b.Registry(), promhttp.HandlerOpts{})}
		go func() {
			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.Errorf("metrics server: %s", err)
			}
		}()
		defer server.Close()
		klog.Infof("serving metrics on %s", metricsAddr)
	}

	_, err = Run(c.Context(), b, genesis.Token, c.OutOrStdout())
	return err
}
