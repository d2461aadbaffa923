package main

import (
	"log"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"predictterm/order"
)

type Config struct {
	APIURL    string        `mapstructure:"api_url"`
	StreamURL string        `mapstructure:"stream_url"`
	BridgeURL string        `mapstructure:"bridge_url"`
	Network   NetworkConfig `mapstructure:"network"`
	Signing   SigningConfig `mapstructure:"signing"`
}

// NetworkConfig is the required-network descriptor; orders are only ever
// signed against this chain.
type NetworkConfig struct {
	ChainID          int64  `mapstructure:"chain_id"`
	Name             string `mapstructure:"name"`
	RPCURL           string `mapstructure:"rpc_url"`
	CurrencyName     string `mapstructure:"currency_name"`
	CurrencySymbol   string `mapstructure:"currency_symbol"`
	CurrencyDecimals int    `mapstructure:"currency_decimals"`
}

type SigningConfig struct {
	DomainName        string `mapstructure:"domain_name"`
	DomainVersion     string `mapstructure:"domain_version"`
	VerifyingContract string `mapstructure:"verifying_contract"`
}

const (
	defaultAPIURL    = "https://prediction-market-backend-production-4e85.up.railway.app"
	defaultStreamURL = "wss://prediction-market-backend-production-4e85.up.railway.app/stream"
	defaultBridgeURL = "ws://localhost:8575/wallet"

	defaultChainID          = 80002
	defaultChainName        = "Polygon Amoy"
	defaultRPCURL           = "https://rpc-amoy.polygon.technology"
	defaultCurrencyName     = "POL"
	defaultCurrencySymbol   = "POL"
	defaultCurrencyDecimals = 18

	defaultDomainName        = "Prediction Market"
	defaultDomainVersion     = "1"
	defaultVerifyingContract = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

func (c Config) network() order.Network {
	return order.Network{
		ChainID: c.Network.ChainID,
		Name:    c.Network.Name,
		RPCURL:  c.Network.RPCURL,
		Currency: order.Currency{
			Name:     c.Network.CurrencyName,
			Symbol:   c.Network.CurrencySymbol,
			Decimals: c.Network.CurrencyDecimals,
		},
	}
}

func (c Config) signingDomain() order.Domain {
	return order.Domain{
		Name:              c.Signing.DomainName,
		Version:           c.Signing.DomainVersion,
		VerifyingContract: c.Signing.VerifyingContract,
	}
}

func initConfig() {
	viper.SetDefault("api_url", defaultAPIURL)
	viper.SetDefault("stream_url", defaultStreamURL)
	viper.SetDefault("bridge_url", defaultBridgeURL)
	viper.SetDefault("network.chain_id", defaultChainID)
	viper.SetDefault("network.name", defaultChainName)
	viper.SetDefault("network.rpc_url", defaultRPCURL)
	viper.SetDefault("network.currency_name", defaultCurrencyName)
	viper.SetDefault("network.currency_symbol", defaultCurrencySymbol)
	viper.SetDefault("network.currency_decimals", defaultCurrencyDecimals)
	viper.SetDefault("signing.domain_name", defaultDomainName)
	viper.SetDefault("signing.domain_version", defaultDomainVersion)
	viper.SetDefault("signing.verifying_contract", defaultVerifyingContract)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalf("failed to get home directory: %v", err)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".predictterm")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func loadConfig() Config {
	config := Config{}
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}
	return config
}
