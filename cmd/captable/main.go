package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/mkarpov/equity/internal/captable/controller"
	"github.com/mkarpov/equity/internal/captable/events"
	"github.com/mkarpov/equity/internal/captable/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SafeConfig holds one SAFE's terms as written in the scenario file.
// Decimal fields are strings so the YAML stays exact.
type SafeConfig struct {
	PaidAmount   string `yaml:"PAID_AMOUNT"`
	Discount     string `yaml:"DISCOUNT"`
	ValuationCap string `yaml:"VALUATION_CAP"`
	ShareClass   string `yaml:"SHARE_CLASS"`
}

// RoundConfig describes the priced round to close.
type RoundConfig struct {
	PreMoneyValuation string            `yaml:"PRE_MONEY_VALUATION"`
	Investors         map[string]string `yaml:"INVESTORS"`
}

// Config struct for YAML configuration
type Config struct {
	KafkaBrokers  []string              `yaml:"KAFKA_BROKERS"`
	Topic         string                `yaml:"TOPIC"`
	TotalShares   int64                 `yaml:"TOTAL_SHARES"`
	PricePerShare string                `yaml:"PRICE_PER_SHARE"`
	Founders      map[string]string     `yaml:"FOUNDERS"`
	Safes         map[string]SafeConfig `yaml:"SAFES"`
	PricedRound   RoundConfig           `yaml:"PRICED_ROUND"`
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	configPath := flag.String("config",
		filepath.Join("internal", "captable", "config", "config.yaml"),
		"path to the scenario file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	opts := []controller.Option{controller.WithLogger(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := initializeKafkaWithRetry(cfg.KafkaBrokers, cfg.Topic, logger)
		if err != nil {
			logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		opts = append(opts, controller.WithProducer(producer))
	}

	if err := runScenario(cfg, logger, opts...); err != nil {
		logger.Fatal("scenario failed", zap.Error(err))
	}
}

// runScenario drives the engine through the scenario file: founding,
// SAFE recording, a founder-friendliness check, and the priced round.
func runScenario(cfg *Config, logger *zap.Logger, opts ...controller.Option) error {
	founders, err := parseDecimalMap(cfg.Founders)
	if err != nil {
		return fmt.Errorf("founders: %w", err)
	}
	pricePerShare, err := parseDecimal(cfg.PricePerShare)
	if err != nil {
		return fmt.Errorf("price per share: %w", err)
	}

	table, err := controller.NewCapTable(founders, cfg.TotalShares, pricePerShare, opts...)
	if err != nil {
		return err
	}

	if len(cfg.Safes) > 0 {
		terms := make(map[string]models.SafeTerms, len(cfg.Safes))
		for name, sc := range cfg.Safes {
			t, err := parseSafeTerms(sc)
			if err != nil {
				return fmt.Errorf("safe %q: %w", name, err)
			}
			terms[name] = t
		}
		table.AddSafes(terms)
	}

	if len(cfg.PricedRound.Investors) == 0 {
		logScenarioResult(table, logger)
		return nil
	}

	investors, err := parseDecimalMap(cfg.PricedRound.Investors)
	if err != nil {
		return fmt.Errorf("investors: %w", err)
	}
	preMoney, err := parseDecimal(cfg.PricedRound.PreMoneyValuation)
	if err != nil {
		return fmt.Errorf("pre-money valuation: %w", err)
	}

	friendly, err := table.IsPricedRoundFounderFriendly(investors, preMoney)
	if err != nil {
		return err
	}
	logger.Info("evaluated prospective round",
		zap.String("pre_money_valuation", preMoney.String()),
		zap.Bool("founder_friendly", friendly),
	)

	postMoney, err := table.AddPricedRound(investors, preMoney)
	if err != nil {
		return err
	}
	logger.Info("round closed",
		zap.String("pre_money_valuation", preMoney.String()),
		zap.String("post_money_valuation", postMoney.String()),
	)
	logScenarioResult(table, logger)
	return nil
}

func logScenarioResult(table *controller.CapTable, logger *zap.Logger) {
	for _, h := range table.Shareholders() {
		logger.Info("position",
			zap.String("name", h.Name),
			zap.String("share_class", string(h.ShareClass)),
			zap.String("shares", h.NumShares.String()),
			zap.String("percent", h.Percent.String()),
			zap.String("value", h.Value.String()),
		)
	}
	logger.Info("totals", zap.String("shares_outstanding", table.TotalShares().String()))
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// loadConfig loads the scenario. Use real config tooling (e.g. Viper) in production.
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// initializeKafkaWithRetry keeps dialing until the brokers accept the
// producer or the backoff gives up.
func initializeKafkaWithRetry(brokers []string, topic string, logger *zap.Logger) (*events.Producer, error) {
	var producer *events.Producer
	err := backoff.Retry(func() error {
		var err error
		producer, err = events.NewProducer(brokers, logger, topic)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, err
	}
	return producer, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseDecimalMap(in map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for name, s := range in {
		d, err := parseDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = d
	}
	return out, nil
}

func parseSafeTerms(sc SafeConfig) (models.SafeTerms, error) {
	paid, err := parseDecimal(sc.PaidAmount)
	if err != nil {
		return models.SafeTerms{}, err
	}
	discount, err := parseDecimal(sc.Discount)
	if err != nil {
		return models.SafeTerms{}, err
	}
	valuationCap, err := parseDecimal(sc.ValuationCap)
	if err != nil {
		return models.SafeTerms{}, err
	}
	return models.SafeTerms{
		PaidAmount:       paid,
		Discount:         discount,
		ValuationCap:     valuationCap,
		FutureShareClass: models.ShareClass(sc.ShareClass),
	}, nil
}
