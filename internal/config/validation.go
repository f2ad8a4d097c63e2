package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct constraints and the credentials required by the
// selected platform and optional features.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []error
	switch c.Platform {
	case "telegram":
		if c.Telegram.Token == "" {
			errs = append(errs, errors.New("telegram.token is required when platform is telegram"))
		}
	case "discord":
		if c.Discord.Token == "" {
			errs = append(errs, errors.New("discord.token is required when platform is discord"))
		}
	case "sms":
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.FromNumber == "" {
			errs = append(errs, errors.New("sms.account_sid, sms.auth_token and sms.from_number are required when platform is sms"))
		}
		if c.SMS.ValidateSignature && c.SMS.PublicURL == "" {
			errs = append(errs, errors.New("sms.public_url is required when sms.validate_signature is enabled"))
		}
	}

	if c.Events.Enabled && (c.Events.URL == "" || c.Events.Exchange == "" || c.Events.RoutingKey == "") {
		errs = append(errs, errors.New("events.url, events.exchange and events.routing_key are required when events are enabled"))
	}

	if _, err := time.LoadLocation(c.Locale.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("locale.timezone %q is not a valid IANA zone: %w", c.Locale.Timezone, err))
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			errs = append(errs, fmt.Errorf("scheduler.tasks.%s.schedule is required when the task is enabled", name))
		}
	}

	return errors.Join(errs...)
}
