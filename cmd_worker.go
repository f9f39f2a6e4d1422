package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"

	"github.com/lockwhz/hogscan/config"
	"github.com/lockwhz/hogscan/internal/db"
	"github.com/lockwhz/hogscan/internal/git"
	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/rules"
	"github.com/lockwhz/hogscan/internal/secrets"
	"github.com/lockwhz/hogscan/internal/services"
	"github.com/lockwhz/hogscan/internal/vault"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume scan jobs from SQS and store the issues in Postgres",
	Long: `Run as a queue worker. Each SQS message names a repository; the worker
clones it, scans it and stores new issues in Postgres.

The worker is configured from the environment: SQS_QUEUE_URL, PG_HOST,
PG_PORT, PG_NAME, PG_USER, PG_PASSWORD (or PG_PASSWORD_FILE), PG_SSLMODE,
HOGSCAN_RULES, HOGSCAN_WORKERS, GIT_BASE_URL and the ENABLE_* toggles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context(), config.LoadService())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(ctx context.Context, cfg config.ServiceConfig) error {
	if err := logger.Init(logger.Options{
		Level:   logger.LevelFromVerbosity(verbose + 2),
		LogPath: cfg.LogPath,
		Fields:  true,
	}); err != nil {
		return err
	}
	logger.Log.Infof("starting worker with %d workers", cfg.Workers)

	rs, err := rules.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	var vaultClient vault.VaultClient = &vault.NoOpVaultClient{}
	if cfg.EnableVault {
		vaultClient = &vault.DefaultVaultClient{}
	}
	gitClient := &git.GoGitClient{Vault: vaultClient}
	auth, err := gitClient.Auth()
	if err != nil {
		return err
	}

	processor := &services.Processor{
		Git:         gitClient,
		NewScanner:  services.TruffleFactory(rs, auth),
		RepoURL:     cfg.RepoURL,
		EnableClone: cfg.EnableClone,
		EnableScan:  cfg.EnableScan,
		EnableStore: cfg.EnableStore,
	}

	if cfg.EnableStore {
		if cfg.PGPassword == "" {
			sm := &secrets.DefaultSecretsManager{}
			if cfg.PGPassword, err = sm.GetSecret("PG_PASSWORD"); err != nil {
				return err
			}
		}
		conn, err := db.Open(ctx, cfg.PostgresConnString())
		if err != nil {
			return err
		}
		defer conn.Close()

		store := &db.RDSStore{DB: conn}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		processor.Store = store
	}

	if !cfg.EnableSQS {
		return fmt.Errorf("ENABLE_SQS is not set, no job source configured")
	}
	if cfg.SQSQueueURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL is empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	producer := &services.DefaultSQSProducer{
		Client:      sqs.NewFromConfig(awsCfg),
		QueueURL:    cfg.SQSQueueURL,
		WaitSeconds: 20,
	}

	consumer := &services.DefaultJobConsumer{
		Processor: processor,
		Producer:  producer,
		Workers:   cfg.Workers,
	}
	// jobs already received run to completion after a shutdown signal
	consumer.Start(context.WithoutCancel(ctx), producer.Start(ctx))

	logger.Log.Info("worker stopped")
	return nil
}
