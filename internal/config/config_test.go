package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.MasteryBaseRate != 0.35 || cfg.MasteryMinRate != 0.05 {
		t.Errorf("mastery rates = %v/%v, want 0.35/0.05", cfg.MasteryBaseRate, cfg.MasteryMinRate)
	}
	if cfg.MasteryHalfLifeDays != 30 || cfg.MasteryBaseline != 0.30 {
		t.Errorf("decay defaults = %d/%v", cfg.MasteryHalfLifeDays, cfg.MasteryBaseline)
	}
	if cfg.PassThreshold != 0.80 || cfg.RetryThreshold != 0.50 {
		t.Errorf("bucket thresholds = %v/%v", cfg.PassThreshold, cfg.RetryThreshold)
	}
	if cfg.MaxIntervalDays != 365 {
		t.Errorf("max interval = %d, want 365", cfg.MaxIntervalDays)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MASTERY_BASE_RATE", "0.5")
	t.Setenv("MASTERY_MIN_RATE", "0.1")
	t.Setenv("ELIGIBILITY_THRESHOLD", "0.7")

	cfg := Load()
	if cfg.MasteryBaseRate != 0.5 {
		t.Errorf("base rate = %v, want 0.5", cfg.MasteryBaseRate)
	}
	if cfg.MasteryMinRate != 0.1 {
		t.Errorf("min rate = %v, want 0.1", cfg.MasteryMinRate)
	}
	if cfg.EligibilityThreshold != 0.7 {
		t.Errorf("eligibility threshold = %v, want 0.7", cfg.EligibilityThreshold)
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("MASTERY_BASE_RATE", "fast")
	t.Setenv("MAX_INTERVAL_DAYS", "a year")

	cfg := Load()
	if cfg.MasteryBaseRate != 0.35 {
		t.Errorf("unparseable float fell through: %v", cfg.MasteryBaseRate)
	}
	if cfg.MaxIntervalDays != 365 {
		t.Errorf("unparseable int fell through: %d", cfg.MaxIntervalDays)
	}
}
