package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"omnitip-relay/internal/blockchain"
	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/internal/service"
	"omnitip-relay/internal/wallet"
	"omnitip-relay/pkg/logger"
)

// tipGasLimit 单笔 tip 交易的预估 gas 上限
const tipGasLimit = 100000

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "omnitipctl",
		Short:         "Operator tooling for the omnitip relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")

	root.AddCommand(statusCmd(), balanceCmd(), goalCmd(), deriveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func loadConfig() (*config.Config, error) {
	config.LoadEnvFiles(".env.local", ".env")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "stderr"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dialLedger(cfg *config.Config) (*blockchain.Client, error) {
	if !cfg.Ledger.Configured() {
		return nil, fmt.Errorf("ledger contract address is not configured")
	}
	return blockchain.NewClient(&cfg.Ledger)
}

func statusCmd() *cobra.Command {
	var lookback int64
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger scores and sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := dialLedger(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			deployed, err := client.HasCode(ctx)
			if err != nil {
				return err
			}
			if !deployed {
				return fmt.Errorf("no contract code at %s", cfg.Ledger.ContractAddress)
			}

			oracle := blockchain.NewOracle(&cfg.Ledger, cfg.Match.Sides(), client)
			scores := oracle.ReadScores(ctx)
			sentiment := oracle.ReadSentiment(ctx)
			sides := oracle.Sides()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "contract:  %s (chain %d)\n", cfg.Ledger.ContractAddress, cfg.Ledger.ChainID)
			fmt.Fprintf(out, "score:     %s %d - %d %s\n", sides[0], scores.ScoreA, scores.ScoreB, sides[1])
			fmt.Fprintf(out, "tips:      %s %d / %s %d (total %d)\n",
				sides[0], sentiment.SideA, sides[1], sentiment.SideB, sentiment.Total)

			return printRecentTips(ctx, cmd, client, lookback, sides)
		},
	}
	cmd.Flags().Int64Var(&lookback, "blocks", 1000, "how many recent blocks to scan for tips")
	return cmd
}

// printRecentTips 输出最近区块内的 NewTip 事件
func printRecentTips(ctx context.Context, cmd *cobra.Command, client *blockchain.Client, lookback int64, sides [2]string) error {
	latest, err := client.GetLatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	start := latest - lookback
	if start < 0 {
		start = 0
	}

	logs, err := client.GetOracleLogs(ctx, start, latest)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "recent tips (blocks %d-%d):\n", start, latest)
	found := 0
	for _, l := range logs {
		event, err := blockchain.ParseOracleLog(l)
		if err != nil || event.Kind != models.LedgerEventTip {
			continue
		}
		side := sides[1]
		if event.PredictsSideA {
			side = sides[0]
		}
		fmt.Fprintf(out, "  #%d %s -> %s at %s\n",
			event.BlockNumber, wallet.Short(event.Wallet), side, event.Timestamp.Format(time.RFC3339))
		found++
	}
	if found == 0 {
		fmt.Fprintln(out, "  none")
	}
	return nil
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show operator balance and how many tips it can pay for",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			signer, err := blockchain.NewSigner(cfg.Ledger.PrivateKey, cfg.Ledger.ChainID)
			if err != nil {
				return err
			}
			client, err := dialLedger(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			balance, err := client.BalanceAt(ctx, signer.Address())
			if err != nil {
				return err
			}
			gasPrice, err := client.SuggestGasPrice(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "operator:  %s\n", signer.Address().Hex())
			fmt.Fprintf(out, "balance:   %s BNB\n", formatUnits(balance, 18))
			fmt.Fprintf(out, "gas price: %s gwei\n", formatUnits(gasPrice, 9))
			fmt.Fprintf(out, "tips left: ~%s\n", affordableTips(balance, gasPrice).String())
			return nil
		},
	}
}

func goalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goal <side>",
		Short: "Record a goal for a side on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			signer, err := blockchain.NewSigner(cfg.Ledger.PrivateKey, cfg.Ledger.ChainID)
			if err != nil {
				return err
			}
			client, err := dialLedger(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			oracle := blockchain.NewOracle(&cfg.Ledger, cfg.Match.Sides(), client)
			settlement := service.NewSettlementService(oracle, signer)

			ref, err := settlement.TriggerGoal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "goal recorded in tx %s (block %d)\n", ref.Hash, ref.BlockNumber)
			return nil
		},
	}
}

func deriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <identifier>",
		Short: "Print the wallet address derived for a sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			identity := wallet.Derive(args[0], cfg.Wallet.Salt)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sender:  ...%s\n", wallet.Mask(args[0]))
			fmt.Fprintf(out, "address: %s\n", identity.Hex())
			return nil
		},
	}
}

// formatUnits 按精度将整数金额转换为十进制字符串
func formatUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// affordableTips 余额可支付的 tip 笔数，gas 价格为0时返回0
func affordableTips(balance, gasPrice *big.Int) decimal.Decimal {
	perTip := decimal.NewFromBigInt(gasPrice, 0).Mul(decimal.NewFromInt(tipGasLimit))
	if perTip.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(balance, 0).Div(perTip).Floor()
}
