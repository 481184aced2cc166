// cmd/filecore/main.go is an example composition root: it loads config,
// wires up a quota manager, a pipeline, and a single cloud provider, then
// blocks until SIGINT or SIGTERM, when it stops the pipeline and disconnects
// the store. A real operator driver wires its own transport loop on top of
// the same internal packages.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FairForge/vaultaire/internal/bandwidth"
	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/FairForge/vaultaire/internal/cloud"
	"github.com/FairForge/vaultaire/internal/cloud/azureblob"
	"github.com/FairForge/vaultaire/internal/cloud/gcs"
	"github.com/FairForge/vaultaire/internal/cloud/s3"
	"github.com/FairForge/vaultaire/internal/config"
	"github.com/FairForge/vaultaire/internal/crypto"
	"github.com/FairForge/vaultaire/internal/pipeline"
	"github.com/FairForge/vaultaire/internal/quota"
	"github.com/FairForge/vaultaire/internal/stats"
	"github.com/FairForge/vaultaire/internal/transport"
	"go.uber.org/zap"
)

func main() {
	cfgPath := config.GetEnvOrDefault("VAULTAIRE_CONFIG", "/etc/vaultaire/config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
		config.LoadFromEnv(cfg)
	}

	logger := buildLogger(cfg.Server.LogLevel)
	defer func() { _ = logger.Sync() }()

	store, err := buildCloudStore(cfg.Cloud, logger)
	if err != nil {
		logger.Fatal("failed to build cloud store", zap.Error(err), zap.String("provider", cfg.Cloud.Provider))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.Connect(ctx); err != nil {
		logger.Fatal("failed to connect cloud store", zap.Error(err))
	}
	cancel()
	logger.Info("cloud store connected", zap.String("provider", cfg.Cloud.Provider))

	var quotaManager *quota.Manager
	if cfg.Quota.Root != "" {
		quotaManager = quota.NewManager(cfg.Quota.Root, cfg.Quota.TotalQuota,
			quota.WithThresholds(cfg.Quota.Thresholds...),
			quota.WithOnThreshold(func(pct float64) {
				logger.Warn("quota threshold crossed", zap.Float64("progress_percent", pct))
			}),
		)
	}

	recvLimiter := bandwidth.NewLimiter(0)
	sendLimiter := bandwidth.NewLimiter(0)
	collector := stats.New()

	pctx := pipeline.NewContext(cfg.Pipeline.CompressionWorkers, recvLimiter, sendLimiter, collector, pipeline.Callbacks{
		Error: func(stageName, message string) {
			logger.Error("pipeline stage error", zap.String("error_message", message), zap.String("stage", stageName))
		},
		RequestChunk: func(id chunk.TransferID, chunkIndex uint64) {
			logger.Warn("chunk failed crc32 verification, resend requested",
				zap.String("transfer_id", id.String()), zap.Uint64("chunk_index", chunkIndex))
		},
		UploadComplete: func(job *pipeline.Job, err error) {
			if err != nil {
				logger.Error("upload assembly failed", zap.Error(err), zap.String("transfer_id", job.Header.TransferID.String()))
				return
			}
			logger.Info("upload complete", zap.String("transfer_id", job.Header.TransferID.String()), zap.String("filename", job.Meta.Filename))
		},
	})

	stages := pipeline.Stages{
		Decompress: pipeline.DecompressStage(),
		Verify:     pipeline.VerifyStage(),
		Write:      pipeline.WriteStage(cfg.Pipeline.StorageRoot),
		Read:       pipeline.ReadStage(cfg.Pipeline.StorageRoot),
		Compress:   pipeline.CompressStage(),
		Send:       pipeline.SendStage(),
	}
	if masterKey, ok := buildMasterKey(cfg.Pipeline.MasterKeyHex); ok {
		encryptor, err := crypto.NewEncryptor(crypto.Algorithm(cfg.Pipeline.EncryptionAlgorithm))
		if err != nil {
			logger.Fatal("failed to build encryptor", zap.Error(err))
		}
		pctx.WithEncryption(encryptor, masterKey)
		stages.Encrypt = pipeline.EncryptStage()
		stages.Decrypt = pipeline.DecryptStage()
		logger.Info("chunk encryption enabled", zap.String("algorithm", string(encryptor.Algorithm())))
	}

	pl := pipeline.New(pipeline.Config{
		QueueSize:          cfg.Pipeline.QueueSize,
		IOWorkers:          cfg.Pipeline.IOWorkers,
		CompressionWorkers: cfg.Pipeline.CompressionWorkers,
		NetworkWorkers:     cfg.Pipeline.NetworkWorkers,
		EncryptionWorkers:  cfg.Pipeline.EncryptionWorkers,
	}, pctx, stages)

	if err := pl.Start(); err != nil {
		logger.Fatal("failed to start pipeline", zap.Error(err))
	}
	logger.Info("pipeline started",
		zap.Int("io_workers", cfg.Pipeline.IOWorkers),
		zap.Int("compression_workers", cfg.Pipeline.CompressionWorkers),
		zap.Int("network_workers", cfg.Pipeline.NetworkWorkers),
	)

	resumptionCfg := transport.DefaultResumptionConfig()
	resumptionCfg.Store.StoragePath = cfg.Transport.TicketStorePath
	resumptionCfg.Store.MaxTickets = cfg.Transport.MaxTickets
	resumptionCfg.Enable0RTT = cfg.Transport.Enable0RTT
	resumption, err := transport.NewResumptionManager(resumptionCfg)
	if err != nil {
		logger.Fatal("failed to build resumption manager", zap.Error(err))
	}

	migrationCfg := transport.DefaultMigrationConfig()
	migrationCfg.AutoMigrate = cfg.Transport.EnableMigration
	migration := transport.NewMigrationManager(migrationCfg, nil)

	_ = resumption
	_ = migration
	_ = quotaManager

	logger.Info("vaultaire ready",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down...")
		if err := pl.Stop(true); err != nil {
			logger.Warn("pipeline stop reported an error", zap.Error(err))
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := store.Disconnect(shutdownCtx); err != nil {
			logger.Warn("cloud store disconnect reported an error", zap.Error(err))
		}
		os.Exit(0)
	}()

	select {}
}

func buildLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = lvl
	}
	logger, err := zapCfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func buildCloudStore(cfg config.CloudConfig, logger *zap.Logger) (cloud.Store, error) {
	switch cfg.Provider {
	case "azureblob":
		return azureblob.New(azureblob.Config{
			Account:       cfg.AzureBlob.Account,
			AccountKeyB64: cfg.AzureBlob.AccountKeyB64,
			Container:     cfg.AzureBlob.Container,
			TenantID:      cfg.AzureBlob.TenantID,
			ClientID:      cfg.AzureBlob.ClientID,
			ClientSecret:  cfg.AzureBlob.ClientSecret,
		})
	case "gcs":
		return gcs.New(gcs.Config{
			Bucket:         cfg.GCS.Bucket,
			ServiceAccount: cfg.GCS.ServiceAccount,
			PrivateKeyPEM:  cfg.GCS.PrivateKeyPEM,
		})
	case "s3", "":
		return s3.New(s3.Config{
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			UsePathStyle: cfg.S3.UsePathStyle,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown cloud provider %q", cfg.Provider)
	}
}

// buildMasterKey decodes the configured hex master key. An empty or
// malformed value leaves encryption disabled rather than failing startup,
// chunk encryption remains an optional hook rather than a hard requirement.
func buildMasterKey(masterKeyHex string) ([]byte, bool) {
	if masterKeyHex == "" {
		return nil, false
	}
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil || len(key) != crypto.MasterKeySize {
		return nil, false
	}
	return key, true
}
