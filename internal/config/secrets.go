package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterGetter is the slice of the SSM client used for secret lookup.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NeedsSecrets reports whether ResolveSecrets would call SSM.
func (c *Config) NeedsSecrets() bool {
	return c.SupabaseAnonKey == "" && c.AnonKeyParam != ""
}

// ResolveSecrets fills the identity-provider anon key from SSM Parameter
// Store when it is not set directly. A lookup failure leaves auth
// unconfigured; it is returned so callers can log it, never fatal.
func (c *Config) ResolveSecrets(ctx context.Context, client ParameterGetter) error {
	if !c.NeedsSecrets() {
		return nil
	}
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.AnonKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("read anon key from SSM %s: %w", c.AnonKeyParam, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return fmt.Errorf("SSM parameter %s has no value", c.AnonKeyParam)
	}
	c.SupabaseAnonKey = *out.Parameter.Value
	log.Debug().Str("param", c.AnonKeyParam).Dur("elapsed", time.Since(start)).Msg("Anon key loaded from SSM")
	return nil
}
