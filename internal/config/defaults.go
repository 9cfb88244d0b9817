package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5002
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/equipment.index"
	}
	if cfg.Storage.MetadataPath == "" {
		cfg.Storage.MetadataPath = "./data/metadata.db"
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = "./exports"
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-4o-mini"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 120
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "flat"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 1536
	}
	if cfg.Query.DefaultTopK == 0 {
		cfg.Query.DefaultTopK = 50
	}
	if cfg.Query.MaxTopK == 0 {
		cfg.Query.MaxTopK = 200
	}
	if cfg.Persist.SaveIntervalSeconds == 0 {
		cfg.Persist.SaveIntervalSeconds = 60
	}
	if cfg.Persist.PoolSweepSeconds == 0 {
		cfg.Persist.PoolSweepSeconds = 10
	}
	if cfg.Persist.PoolIdleSeconds == 0 {
		cfg.Persist.PoolIdleSeconds = 30
	}
	if cfg.History.DatabasePath == "" {
		cfg.History.DatabasePath = "./data/history.db"
	}
}
