package sms

import (
	"github.com/smallbiznis/taskboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if !cfg.SMS.Enabled || cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.From == "" {
		log.Info("twilio not configured, sms delivery disabled")
		return &NoOpProvider{}
	}
	return NewTwilio(TwilioConfig{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		From:       cfg.SMS.From,
		BaseURL:    cfg.SMS.BaseURL,
	}, nil)
}
