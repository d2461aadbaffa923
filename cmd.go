package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"predictterm/client"
	"predictterm/logger"
	"predictterm/order"
	"predictterm/provider"
	"predictterm/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "predictterm",
	Short: "Terminal client for the prediction market",
	Long:  `A terminal client for browsing prediction markets and submitting signed orders through an external wallet.`,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")

	tradeCmd.Flags().String("market", "", "market condition id")
	tradeCmd.Flags().String("outcome", "yes", "outcome to trade: yes or no")
	tradeCmd.Flags().String("side", "buy", "order side: buy or sell")
	tradeCmd.Flags().String("amount", "", "collateral amount, e.g. 100")
	_ = tradeCmd.MarkFlagRequired("market")
	_ = tradeCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(marketsCmd, connectCmd, tradeCmd, watchCmd)
}

// newSession dials the wallet bridge and hands the session manager either a
// live provider or none at all; an unreachable bridge is the terminal
// equivalent of a browser without an injected wallet.
func newSession(cfg Config, logg *logger.Logger) (*wallet.Manager, provider.Provider) {
	var prov provider.Provider
	bridge := provider.NewBridge(cfg.BridgeURL, logg)
	if err := bridge.Connect(); err != nil {
		logg.Warn("wallet_bridge_unavailable", "url", cfg.BridgeURL, "err", err)
	} else {
		prov = bridge
	}

	session := wallet.NewManager(prov, logg)
	session.Initialize(context.Background())
	return session, prov
}

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List markets",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logg := logger.NewLogger()

		markets, err := client.NewMarketsClient(cfg.APIURL, logg).Markets(cmd.Context())
		if err != nil {
			log.Fatalf("failed to fetch markets: %v", err)
		}

		for _, m := range markets {
			yesPct, noPct := client.Probability(m.YesPrice, m.NoPrice)
			fmt.Printf("%-66s  YES %s  NO %s  %s\n",
				m.ConditionID,
				client.FormatPercent(yesPct),
				client.FormatPercent(noPct),
				m.Title)
		}
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet and show session state",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logg := logger.NewLogger()

		session, _ := newSession(cfg, logg)
		if err := session.Connect(cmd.Context()); err != nil {
			log.Fatalf("connect failed: %v (install or start a wallet and retry)", err)
		}

		fmt.Println("state:  ", session.State())
		fmt.Println("address:", client.FormatAddress(session.Address()))
		if session.IsConnected() {
			fmt.Println("chain:  ", session.ChainID())
		}
	},
}

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Submit a signed order",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logg := logger.NewLogger()

		marketID, _ := cmd.Flags().GetString("market")
		outcomeFlag, _ := cmd.Flags().GetString("outcome")
		sideFlag, _ := cmd.Flags().GetString("side")
		amount, _ := cmd.Flags().GetString("amount")

		outcome := order.Yes
		if outcomeFlag == "no" {
			outcome = order.No
		}
		side := order.Buy
		if sideFlag == "sell" {
			side = order.Sell
		}

		ctx := cmd.Context()

		market, err := client.NewMarketsClient(cfg.APIURL, logg).Market(ctx, marketID)
		if err != nil {
			log.Fatalf("failed to fetch market: %v", err)
		}

		price := market.YesPrice
		if outcome == order.No {
			price = market.NoPrice
		}

		session, prov := newSession(cfg, logg)
		if err := session.Connect(ctx); err != nil {
			log.Fatalf("connect failed: %v (install or start a wallet and retry)", err)
		}
		if !session.IsConnected() {
			log.Fatalf("wallet connection was not approved")
		}

		workflow := order.NewWorkflow(order.WorkflowConfig{
			Session:   session,
			Provider:  prov,
			Submitter: client.NewOrdersClient(cfg.APIURL, logg),
			Network:   cfg.network(),
			Domain:    cfg.signingDomain(),
			Log:       logg,
		})

		receipt, err := workflow.Submit(ctx, order.Intent{
			Market:  market.OrderMarket(),
			Side:    side,
			Outcome: outcome,
			Amount:  amount,
			Price:   price,
		})
		if err != nil {
			log.Fatalf("order failed: %v", err)
		}

		fmt.Printf("Order submitted: %s...\n", receipt.OrderHash[:min(len(receipt.OrderHash), 10)])
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [conditionId...]",
	Short: "Stream live prices for markets",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logg := logger.NewLogger()

		stream := client.NewMarketStream(cfg.StreamURL, client.StreamCallbacks{
			OnPriceChange: func(m client.PriceChangeMessage) {
				fmt.Printf("%s %s %s @ %.2f\n", m.Market, m.Outcome, m.Side, float64(m.Price))
			},
			OnLastTradePrice: func(m client.LastTradePriceMessage) {
				fmt.Printf("%s trade %s %.2f x %.2f\n", m.Market, m.Side, float64(m.Price), float64(m.Size))
			},
		}, logg)

		if err := stream.Connect(); err != nil {
			log.Fatalf("failed to connect stream: %v", err)
		}
		defer stream.Close()

		if err := stream.Subscribe(args); err != nil {
			log.Fatalf("failed to subscribe: %v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := stream.Listen(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("stream closed: %v", err)
		}
	},
}
