package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligun0805/batch-broadcaster/internal/broadcast"
	"github.com/ligun0805/batch-broadcaster/internal/payload"
	"github.com/ligun0805/batch-broadcaster/internal/report"
)

// allInSteps is deploy (awaited) -> erc20 -> gmonchain, all on one local nonce sequence.
func (a *app) allInSteps(name, symbol string) ([]broadcast.Step, error) {
	deploy, err := payload.OwltoDeploy()
	if err != nil {
		return nil, err
	}
	token, err := payload.OwltoERC20(name, symbol)
	if err != nil {
		return nil, err
	}
	gmon, err := payload.GmonCreate()
	if err != nil {
		return nil, err
	}
	return []broadcast.Step{
		{Name: payload.ActionOwlto, Build: broadcast.Static(deploy), GasLimit: a.gasFor(payload.ActionOwlto), Wait: true},
		{Name: payload.ActionERC20, Build: broadcast.Static(token), GasLimit: a.gasFor(payload.ActionERC20)},
		{Name: payload.ActionGmon, Build: broadcast.Static(gmon), GasLimit: a.gasFor(payload.ActionGmon)},
	}, nil
}

func (a *app) allInCmd() *cobra.Command {
	var name, symbol string
	cmd := &cobra.Command{
		Use:   "all-in",
		Short: "Per account: deploy, then ERC20, then GMONChain, chained by nonce",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if name == "" {
				name = a.cfg.ERC20Name
			}
			if symbol == "" {
				symbol = a.cfg.ERC20Symbol
			}
			steps, err := a.allInSteps(name, symbol)
			if err != nil {
				return err
			}
			p := a.actionPolicy(payload.ActionAllIn)
			rep := a.dispatcher().DispatchChain(ctx, a.accts.All(), steps, p)
			a.printChains(rep)

			if !a.saving() {
				return nil
			}
			file := payload.ResultFile(payload.ActionAllIn, "")
			if err := report.Persist(file, report.FromChainReport(rep)); err != nil {
				a.log.Errorf("results not saved: %v", err)
				return nil
			}
			a.log.Infof("results saved to %s", file)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "token name (default from config)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "token symbol (default from config)")
	return cmd
}

func (a *app) printChains(rep *broadcast.ChainReport) {
	c := report.SummarizeChains(rep.Chains)
	fmt.Fprintf(os.Stdout, "\nAll-in on %s\n", rep.Network)
	fmt.Fprintf(os.Stdout, "  total:   %d\n  success: %d\n  partial: %d\n  failed:  %d\n", c.Total, c.Success, c.Partial, c.Failed)
	for _, cr := range rep.Chains {
		if cr.Status == broadcast.ChainSuccess {
			continue
		}
		fmt.Fprintf(os.Stdout, "  %s %s: %s\n", cr.Account, cr.Status, cr.Error)
	}
}
