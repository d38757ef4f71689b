package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
	"github.com/ligun0805/batch-broadcaster/internal/network"
)

func (a *app) networkInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network-info",
		Short: "Show chain id, head block and gas price of the active network",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			info, err := a.net.Info(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("[net] %s chain=%s block=%d gasPrice=%s gwei\n", info.Network, info.ChainID, info.BlockNumber, formatGwei(info.GasPrice))
			return nil
		}),
	}
}

func (a *app) estimateCmd() *cobra.Command {
	var gas uint64
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the total gas cost of one batch across all accounts",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if gas == 0 {
				gas = a.cfg.GasLimit
			}
			price, err := a.net.GasPrice(ctx)
			if err != nil {
				return err
			}
			total, cost := estimateCost(a.accts.Len(), gas, price)
			fmt.Printf("accounts:  %d\n", a.accts.Len())
			fmt.Printf("gas/tx:    %d\n", gas)
			fmt.Printf("gas price: %s gwei\n", formatGwei(price))
			fmt.Printf("total gas: %s\n", total)
			fmt.Printf("cost:      %s ETH\n", formatEther(cost))
			return nil
		}),
	}
	cmd.Flags().Uint64Var(&gas, "gas", 0, "gas limit per tx (default from config)")
	return cmd
}

func estimateCost(n int, gas uint64, price *big.Int) (total, cost *big.Int) {
	total = new(big.Int).Mul(big.NewInt(int64(n)), new(big.Int).SetUint64(gas))
	cost = new(big.Int).Mul(total, price)
	return total, cost
}

func (a *app) balancesCmd() *cobra.Command {
	var both bool
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show account balances on the active network, or on both with --both",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			nets := []*network.Context{a.net}
			if both {
				other := network.Giwa
				if a.net.Name() == network.Giwa {
					other = network.Sepolia
				}
				next, err := a.net.Switch(ctx, other)
				if err != nil {
					a.log.Errorf("%v", err)
				} else {
					defer next.Close()
					nets = append(nets, next)
				}
			}
			printBalances(ctx, a.accts.All(), nets)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&both, "both", false, "also check the other network")
	return cmd
}

func printBalances(ctx context.Context, accts []accounts.Account, nets []*network.Context) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "#\taddress")
	for _, nc := range nets {
		fmt.Fprintf(w, "\t%s (%s)", nc.Name(), nc.ChainID())
	}
	fmt.Fprintln(w)
	for _, acct := range accts {
		fmt.Fprintf(w, "%d\t%s", acct.Ordinal, acct.Address.Hex())
		for _, nc := range nets {
			bal, err := nc.Balance(ctx, acct.Address)
			if err != nil {
				fmt.Fprintf(w, "\terror: %v", err)
				continue
			}
			fmt.Fprintf(w, "\t%s ETH", formatEther(bal))
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
}

func (a *app) importKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-key",
		Short: "Append a private key to the account file (read without echo)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			key, err := readSecret("private key: ")
			if err != nil {
				return err
			}
			addr, err := accounts.AppendKey(a.cfg.AccountFilePath, key)
			if err != nil {
				return err
			}
			fmt.Printf("added %s (%s) to %s\n", addr.Hex(), maskHex(key), a.cfg.AccountFilePath)
			return nil
		},
	}
}
