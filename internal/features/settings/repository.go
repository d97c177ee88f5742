package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-pipeline/internal/database"
)

type SettingsRepository interface {
	ListByUser(ctx context.Context, userID string) ([]IntegrationSetting, error)
	Upsert(ctx context.Context, userID string, setting IntegrationSetting) error
}

type SettingsRepositoryImpl struct {
	DB *sql.DB
}

func NewSettingsRepository(pg *database.PostgresDB) SettingsRepository {
	return &SettingsRepositoryImpl{DB: pg.DB}
}

func (r *SettingsRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]IntegrationSetting, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT integration_type, enabled, api_key, config, updated_at
		FROM integration_settings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []IntegrationSetting{}
	for rows.Next() {
		var (
			s       IntegrationSetting
			apiKey  sql.NullString
			config  []byte
			updated time.Time
		)
		if err := rows.Scan(&s.IntegrationType, &s.Enabled, &apiKey, &config, &updated); err != nil {
			return nil, err
		}
		s.ApiKey = apiKey.String
		s.UpdatedAt = &updated
		if len(config) > 0 {
			if err := json.Unmarshal(config, &s.Config); err != nil {
				return nil, fmt.Errorf("decode %s config: %w", s.IntegrationType, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert writes the setting keyed by (user_id, integration_type).
func (r *SettingsRepositoryImpl) Upsert(ctx context.Context, userID string, s IntegrationSetting) error {
	var config any
	if s.Config != nil {
		b, err := json.Marshal(s.Config)
		if err != nil {
			return err
		}
		config = string(b)
	}
	var apiKey any
	if s.ApiKey != "" {
		apiKey = s.ApiKey
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO integration_settings (user_id, integration_type, enabled, api_key, config, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, integration_type)
		DO UPDATE SET enabled = EXCLUDED.enabled, api_key = EXCLUDED.api_key,
			config = EXCLUDED.config, updated_at = NOW()`,
		userID, s.IntegrationType, s.Enabled, apiKey, config)
	return err
}
