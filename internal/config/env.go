package config

import (
	"os"
	"strconv"
)

// LoadFromEnv overlays environment variables on top of a loaded Config.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("VAULTAIRE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("VAULTAIRE_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}

	if provider := os.Getenv("VAULTAIRE_CLOUD_PROVIDER"); provider != "" {
		cfg.Cloud.Provider = provider
	}
	if bucket := os.Getenv("VAULTAIRE_CLOUD_BUCKET"); bucket != "" {
		switch cfg.Cloud.Provider {
		case "azureblob":
			cfg.Cloud.AzureBlob.Container = bucket
		case "gcs":
			cfg.Cloud.GCS.Bucket = bucket
		default:
			cfg.Cloud.S3.Bucket = bucket
		}
	}
	if accessKey := os.Getenv("VAULTAIRE_S3_ACCESS_KEY"); accessKey != "" {
		cfg.Cloud.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("VAULTAIRE_S3_SECRET_KEY"); secretKey != "" {
		cfg.Cloud.S3.SecretKey = secretKey
	}

	if quotaRoot := os.Getenv("VAULTAIRE_QUOTA_ROOT"); quotaRoot != "" {
		cfg.Quota.Root = quotaRoot
	}
	if quotaTotal := os.Getenv("VAULTAIRE_QUOTA_TOTAL"); quotaTotal != "" {
		if v, err := strconv.ParseInt(quotaTotal, 10, 64); err == nil {
			cfg.Quota.TotalQuota = v
		}
	}

	if ticketPath := os.Getenv("VAULTAIRE_TICKET_STORE_PATH"); ticketPath != "" {
		cfg.Transport.TicketStorePath = ticketPath
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
