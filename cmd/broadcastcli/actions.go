package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
	"github.com/ligun0805/batch-broadcaster/internal/broadcast"
	"github.com/ligun0805/batch-broadcaster/internal/network"
	"github.com/ligun0805/batch-broadcaster/internal/payload"
	"github.com/ligun0805/batch-broadcaster/internal/report"
)

// withSetup wraps a command body with config/accounts/network setup and teardown.
func (a *app) withSetup(body func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := a.setup(ctx); err != nil {
			return err
		}
		defer a.close()
		return body(ctx, cmd, args)
	}
}

// gasFor picks the configured gas for an action.
func (a *app) gasFor(action string) uint64 {
	switch action {
	case payload.ActionGmon:
		return a.cfg.GmonCreateGas
	case payload.ActionBridge:
		return a.cfg.BridgeGasLimit
	}
	if a.cfg.GasLimit > 0 {
		return a.cfg.GasLimit
	}
	return payload.Actions[action].GasLimit
}

func (a *app) actionPolicy(action string) broadcast.Policy {
	return a.policy(action, a.gasFor(action), payload.Actions[action].Wait)
}

type batchSpec struct {
	title  string
	action string
	file   string
	accts  []accounts.Account
	build  broadcast.PayloadFunc
	policy broadcast.Policy
	mint   *report.MintSummary
}

func (a *app) runBatch(ctx context.Context, s batchSpec) error {
	a.warnEmptyBalances(ctx, s.accts)
	rep := a.dispatcher().DispatchBatch(ctx, s.accts, s.build, s.policy)

	counts := report.Summarize(rep.Results)
	report.Print(os.Stdout, s.title, counts)
	if s.mint != nil {
		fmt.Fprintf(os.Stdout, "  processed: %d\n  skipped:   %d\n", s.mint.Processed, s.mint.Skipped)
	}
	if !a.saving() {
		return nil
	}
	f := report.FromReport(rep)
	f.Mint = s.mint
	if err := report.Persist(s.file, f); err != nil {
		a.log.Errorf("results not saved: %v", err)
		return nil
	}
	a.log.Infof("results saved to %s", s.file)
	return nil
}

// warnEmptyBalances logs accounts that cannot pay for gas; they are still dispatched.
func (a *app) warnEmptyBalances(ctx context.Context, accts []accounts.Account) {
	if !a.cfg.CheckBalanceFirst {
		return
	}
	for _, acct := range accts {
		bal, err := a.net.Balance(ctx, acct.Address)
		if err != nil {
			a.log.Debugf("%s: balance check failed: %v", acct, err)
			continue
		}
		if bal.Sign() == 0 {
			a.log.Warnf("%s has zero balance on %s", acct, a.net.Name())
		}
	}
}

func (a *app) deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the Owlto contract from every account and wait for receipts",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			pl, err := payload.OwltoDeploy()
			if err != nil {
				return err
			}
			return a.runBatch(ctx, batchSpec{
				title:  "Owlto deployment",
				action: payload.ActionOwlto,
				file:   payload.ResultFile(payload.ActionOwlto, ""),
				accts:  a.accts.All(),
				build:  broadcast.Static(pl),
				policy: a.actionPolicy(payload.ActionOwlto),
			})
		}),
	}
}

func (a *app) erc20Cmd() *cobra.Command {
	var name, symbol string
	cmd := &cobra.Command{
		Use:   "erc20",
		Short: "Deploy an ERC20 token with the given name and symbol from every account",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if name == "" {
				name = a.cfg.ERC20Name
			}
			if symbol == "" {
				symbol = a.cfg.ERC20Symbol
			}
			pl, err := payload.OwltoERC20(name, symbol)
			if err != nil {
				return err
			}
			return a.runBatch(ctx, batchSpec{
				title:  fmt.Sprintf("ERC20 %s (%s) deployment", name, symbol),
				action: payload.ActionERC20,
				file:   payload.ResultFile(payload.ActionERC20, symbol),
				accts:  a.accts.All(),
				build:  broadcast.Static(pl),
				policy: a.actionPolicy(payload.ActionERC20),
			})
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "token name (default from config)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "token symbol (default from config)")
	return cmd
}

func (a *app) gmonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmon",
		Short: "Call the GMONChain factory from every account",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			pl, err := payload.GmonCreate()
			if err != nil {
				return err
			}
			return a.runBatch(ctx, batchSpec{
				title:  "GMONChain deployment",
				action: payload.ActionGmon,
				file:   payload.ResultFile(payload.ActionGmon, ""),
				accts:  a.accts.All(),
				build:  broadcast.Static(pl),
				policy: a.actionPolicy(payload.ActionGmon),
			})
		}),
	}
}

func (a *app) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint",
		Short: "Mint the Omnihub NFT for accounts that do not hold one yet",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			eligible, skipped := payload.FilterHolders(ctx, a.net, a.accts.All(), payload.OmnihubContract, a.log.Infof)
			sum := report.NewMintSummary(eligible, skipped)
			if len(eligible) == 0 {
				fmt.Fprintf(os.Stdout, "every account already holds the NFT (skipped %d), nothing sent\n", sum.Skipped)
				return nil
			}
			pl, err := payload.OmnihubMint()
			if err != nil {
				return err
			}
			return a.runBatch(ctx, batchSpec{
				title:  "Omnihub mint",
				action: payload.ActionOmnihub,
				file:   payload.ResultFile(payload.ActionOmnihub, ""),
				accts:  eligible,
				build:  broadcast.Static(pl),
				policy: a.actionPolicy(payload.ActionOmnihub),
				mint:   &sum,
			})
		}),
	}
}

func (a *app) bridgeCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Deposit ETH from sepolia to giwa through the OptimismPortal",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if a.net.Name() != network.Sepolia {
				return fmt.Errorf("bridge deposits are sent on %s, active network is %s", network.Sepolia, a.net.Name())
			}
			wei := a.cfg.BridgeAmount()
			if amount != "" {
				v, err := parseETH(amount)
				if err != nil {
					return err
				}
				wei = v
			}
			build := func(_ context.Context, acct accounts.Account) (payload.Payload, error) {
				return payload.BridgeDeposit(payload.OptimismPortal, acct.Address, wei, a.cfg.BridgeL2Gas)
			}
			p := a.actionPolicy(payload.ActionBridge)
			p.JitterMin, p.JitterMax = a.cfg.BridgeJitter()
			p.NoJitter = p.JitterMax == 0
			a.log.Infof("bridging %s ETH per account", formatEther(wei))
			return a.runBatch(ctx, batchSpec{
				title:  "Sepolia -> GIWA bridge",
				action: payload.ActionBridge,
				file:   payload.ResultFile(payload.ActionBridge, ""),
				accts:  a.accts.All(),
				build:  build,
				policy: p,
			})
		}),
	}
	cmd.Flags().StringVar(&amount, "amount", "", "ETH per account (default from config)")
	return cmd
}
