package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	TaxRateBP             int64
	JWTSecret             string
	AccessTokenTTLMinutes int
	UnlockCode            string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	taxRate, err := strconv.ParseInt(getEnv("TAX_RATE_BP", "0"), 10, 64)
	if err != nil || taxRate < 0 {
		taxRate = 0
	}
	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("APP_PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		TaxRateBP:             taxRate,
		JWTSecret:             strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		UnlockCode:            strings.TrimSpace(os.Getenv("UNLOCK_CODE")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
