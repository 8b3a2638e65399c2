package config

import (
	"os"
	"strconv"
)

// Server captures process level configuration.
type Server struct {
	Addr              string
	Operator          string
	StoreBackend      string
	DatabaseURL       string
	AuditBufferSize   int
	VerifyConcurrency int
}

// Store backends selectable via OCONSENT_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("OCONSENT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	operator := os.Getenv("OCONSENT_OPERATOR")
	if operator == "" {
		// Development default - production deployments must set a real operator principal.
		operator = "registry-operator"
	}

	backend := os.Getenv("OCONSENT_STORE")
	if backend == "" {
		backend = StoreMemory
	}

	return Server{
		Addr:              addr,
		Operator:          operator,
		StoreBackend:      backend,
		DatabaseURL:       os.Getenv("OCONSENT_DATABASE_URL"),
		AuditBufferSize:   intFromEnv("OCONSENT_AUDIT_BUFFER", 0),
		VerifyConcurrency: intFromEnv("OCONSENT_VERIFY_CONCURRENCY", 0),
	}
}

func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
