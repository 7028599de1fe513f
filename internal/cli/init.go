package cli

import (
	"context"

	"github.com/fpang/sketchflow/internal/awsboot"
	"github.com/fpang/sketchflow/internal/config"
	"github.com/rs/zerolog/log"
)

// InitConfig loads configuration and, when the anon key lives in SSM,
// resolves it through aws. A failed lookup is logged and auth stays off.
func InitConfig(ctx context.Context, aws *awsboot.Clients) *config.Config {
	cfg := config.Load()
	if !cfg.NeedsSecrets() {
		return cfg
	}

	client, err := aws.SSM(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("AWS unavailable, continuing without sign-in")
		return cfg
	}
	if err := cfg.ResolveSecrets(ctx, client); err != nil {
		log.Warn().Err(err).Msg("Anon key lookup failed, continuing without sign-in")
	}
	return cfg
}
