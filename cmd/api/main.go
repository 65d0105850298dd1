package main

import (
	"context"
	"net/http"

	"citzn-api/internal/cache"
	"citzn-api/internal/classifier"
	"citzn-api/internal/config"
	"citzn-api/internal/geocoder"
	"citzn-api/internal/handler"
	"citzn-api/internal/metrics"
	"citzn-api/internal/refdata"
	"citzn-api/internal/repository"
	"citzn-api/internal/resolver"
	"citzn-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	// Static reference dataset, loaded once at startup.
	table, err := refdata.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load reference dataset")
	}
	log.Info().Str("version", refdata.Version).Int("entries", table.Size()).Msg("reference dataset loaded")

	// Database connection
	conn, err := pgxpool.New(context.Background(), config.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Durable cache tier; optional.
	var rdb *redis.Client
	if config.RedisAddress != "" {
		rdb = redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, running with in-process cache only")
			rdb = nil
		}
	}

	tiered, err := cache.NewTieredCache(config.CacheSize, rdb, config.CacheTTL, config.FallbackCacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create cache")
	}

	// Initialize layers
	repo := repository.NewRepository(conn)
	geo := geocoder.NewClient(config.GeocoderBaseURL, config.GeocoderAPIKey, config.GeocoderTimeout)
	districts := resolver.NewDistrictResolver(repo)
	jurisdictions := classifier.NewClassifier(table, config.FullCoverageStates)

	resolveService := service.NewResolveService(tiered, table, geo, districts, jurisdictions, config.CoveragePolicy, config.FullCoverageStates)

	resolveHandler := handler.NewResolveHandler(resolveService)
	invalidateHandler := handler.NewInvalidateHandler(resolveService)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"dataset_version": refdata.Version,
		})
	})

	r.GET("/resolve/:zip", resolveHandler.Resolve)
	r.GET("/verify-zip", resolveHandler.VerifyZip)
	r.POST("/invalidate", invalidateHandler.Invalidate)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.Run(config.ServerAddress)
}
