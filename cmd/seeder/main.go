// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"io/fs"
	"sort"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/config"
	"github.com/unclebandit/pulse-scheduler/internal/db"
	"github.com/unclebandit/pulse-scheduler/internal/logger"
	"github.com/unclebandit/pulse-scheduler/migrations"
	"github.com/unclebandit/pulse-scheduler/seed"
)

func main() {
	withDemo := flag.Bool("seed", true, "load demo data after migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "pulse-seeder")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer conn.Close()

	applied, err := db.RunMigrations(ctx, conn, migrations.FS, log)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migrations applied", zap.Int("count", applied))

	if !*withDemo {
		return
	}

	files, err := fs.Glob(seed.FS, "*.sql")
	if err != nil {
		log.Fatal("failed to list seed files", zap.Error(err))
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(seed.FS, file)
		if err != nil {
			log.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		log.Info("seeded", zap.String("file", file))
	}
	log.Info("database seeding completed")
}
