package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
	log     *zap.Logger
}

// NewCheckoutConfigHolder reads checkout.yml when present and falls back to
// the environment values. The file is watched and valid edits replace the
// current value.
func NewCheckoutConfigHolder(cfg Config, log *zap.Logger) (*CheckoutConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("checkout.config")

	v := viper.New()
	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/boxoffice/config")
	v.AddConfigPath("/etc/boxoffice")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOXOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkout.holdDuration", cfg.Checkout.HoldDuration)
	v.SetDefault("checkout.checkoutTimer", cfg.Checkout.CheckoutTimer)
	v.SetDefault("checkout.maxHoldQuantity", cfg.Checkout.MaxHoldQuantity)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var current CheckoutConfig
	if err := v.UnmarshalKey("checkout", &current); err != nil {
		return nil, err
	}
	if err := ValidateCheckoutConfig(current); err != nil {
		return nil, err
	}

	holder := &CheckoutConfigHolder{log: log}
	holder.store(current)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated CheckoutConfig
			if err := v.UnmarshalKey("checkout", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := ValidateCheckoutConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticCheckoutConfigHolder returns a holder that never reloads.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{log: zap.NewNop()}
	holder.current.Store(cfg)
	return holder
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	return h.current.Load().(CheckoutConfig)
}

func (h *CheckoutConfigHolder) store(cfg CheckoutConfig) {
	if cfg.HoldDuration != cfg.CheckoutTimer {
		h.log.Warn("hold duration differs from checkout timer",
			zap.Duration("hold_duration", cfg.HoldDuration),
			zap.Duration("checkout_timer", cfg.CheckoutTimer),
		)
	}
	h.current.Store(cfg)
}

func ValidateCheckoutConfig(cfg CheckoutConfig) error {
	if cfg.HoldDuration <= 0 {
		return errors.New("checkout.holdDuration must be positive")
	}
	if cfg.CheckoutTimer <= 0 {
		return errors.New("checkout.checkoutTimer must be positive")
	}
	if cfg.MaxHoldQuantity <= 0 {
		return errors.New("checkout.maxHoldQuantity must be positive")
	}
	return nil
}
