// Package awsboot loads AWS configuration and builds the SDK clients the CLI
// needs on demand: SSM for secret lookup and S3 for exports. Nothing here
// runs unless a command actually needs AWS.
package awsboot

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// Clients lazily loads the default AWS config once and hands out clients built from it.
type Clients struct {
	once sync.Once
	cfg  aws.Config
	err  error

	load func(ctx context.Context) (aws.Config, error)
}

// New returns Clients backed by the default credential chain.
func New() *Clients {
	return &Clients{load: func(ctx context.Context) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	}}
}

// Config returns the loaded AWS config.
func (c *Clients) Config(ctx context.Context) (aws.Config, error) {
	c.once.Do(func() {
		c.cfg, c.err = c.load(ctx)
		if c.err != nil {
			c.err = fmt.Errorf("load AWS config: %w", c.err)
			return
		}
		log.Debug().Str("region", c.cfg.Region).Msg("AWS config loaded")
	})
	return c.cfg, c.err
}

// SSM returns an SSM client.
func (c *Clients) SSM(ctx context.Context) (*ssm.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

// S3 returns an S3 client.
func (c *Clients) S3(ctx context.Context) (*s3.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}
