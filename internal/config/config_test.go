package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsroom.yaml")
	raw := `
timezone: Asia/Tehran
scheduler:
  quiescence: 30m
cms:
  baseUrl: https://chapar.example/wp-json/wp/v2
  authorId: 9
categories:
  - title: Politics
    externalId: 12
agencies:
  - title: ILNA
    slug: ilna
    website: ilna.news
    sites:
      - url: https://www.ilna.news/politics
        label: سیاسی
        category: Politics
  - title: ISNA
    slug: isna
    crawlEnabled: false
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(cmsUsernameEnv, "bot")
	t.Setenv(databaseDSNEnv, "postgres://override")

	cfg := Load()

	if cfg.Location().String() != "Asia/Tehran" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
	if cfg.Scheduler.Quiescence != 30*time.Minute {
		t.Fatalf("unexpected quiescence %s", cfg.Scheduler.Quiescence)
	}
	if cfg.Scheduler.CrawlCron == "" {
		t.Fatal("default crawl cron should survive merge")
	}
	if cfg.CMS.AuthorID != 9 || cfg.CMS.Username != "bot" {
		t.Fatalf("unexpected cms config %+v", cfg.CMS)
	}
	if cfg.Database.DSN != "postgres://override" {
		t.Fatalf("env override not applied: %s", cfg.Database.DSN)
	}
	if len(cfg.Agencies) != 2 || !cfg.Agencies[0].Enabled() || cfg.Agencies[1].Enabled() {
		t.Fatalf("unexpected agencies %+v", cfg.Agencies)
	}
	if cfg.Categories[0].ExternalID == nil || *cfg.Categories[0].ExternalID != 12 {
		t.Fatalf("unexpected categories %+v", cfg.Categories)
	}
}

func TestLoadReadsCamelCaseKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsroom.yaml")
	raw := `
database:
  driver: memory
  maxOpenConns: 3
  migrateOnStart: true
scheduler:
  crawlCron: "*/5 * * * *"
  reconcileCron: "@hourly"
crawler:
  userAgent: desk-bot
  initialStatus: editable
cms:
  tokenStore: redis
  tokenTtl: 2h
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Database.Driver != "memory" || cfg.Database.MaxOpenConns != 3 || !cfg.Database.MigrateOnStart {
		t.Fatalf("database keys not read: %+v", cfg.Database)
	}
	if cfg.Scheduler.CrawlCron != "*/5 * * * *" || cfg.Scheduler.ReconcileCron != "@hourly" {
		t.Fatalf("scheduler keys not read: %+v", cfg.Scheduler)
	}
	if cfg.Crawler.UserAgent != "desk-bot" || cfg.Crawler.InitialStatus != "editable" {
		t.Fatalf("crawler keys not read: %+v", cfg.Crawler)
	}
	if cfg.CMS.TokenStore != "redis" || cfg.CMS.TokenTTL != 2*time.Hour {
		t.Fatalf("cms keys not read: %+v", cfg.CMS)
	}
}

func TestUnknownTimezoneFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(timezoneEnv, "Mars/Olympus")

	cfg := Load()
	if cfg.Location() != time.UTC && cfg.Location().String() != "UTC" {
		t.Fatalf("expected UTC fallback, got %s", cfg.Location())
	}
}
