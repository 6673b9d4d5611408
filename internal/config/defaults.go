package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RatePerSecond == 0 {
		cfg.Server.RatePerSecond = 1
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 5
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/lectio/data/lectio.db"
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 200
	}
	if cfg.Retrieval.MinTextLen == 0 {
		cfg.Retrieval.MinTextLen = 100
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Commentary.NeutralScore == 0 {
		cfg.Commentary.NeutralScore = 0.7
	}
	if cfg.Commentary.RegenThreshold == 0 {
		cfg.Commentary.RegenThreshold = 0.4
	}
	if cfg.Commentary.MinRatings == 0 {
		cfg.Commentary.MinRatings = 3
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.DefaultModel == "" {
		cfg.Ollama.DefaultModel = "llama2:7b"
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = 2 * time.Minute
	}
	if cfg.Ollama.NumPredict == 0 {
		cfg.Ollama.NumPredict = 500
	}
	if cfg.Ollama.Temperature == 0 {
		cfg.Ollama.Temperature = 0.7
	}
	if cfg.Ollama.TopP == 0 {
		cfg.Ollama.TopP = 0.9
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".html", ".htm", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}
}
