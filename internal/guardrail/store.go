package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/promptdeck/promptdeck/internal/database"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/tenant"
)

// PresetNames are the system-scoped configs seeded by the migrations.
var PresetNames = []string{"unrestricted", "research_safe", "clinical"}

type Store struct {
	db database.Querier
}

func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

const configColumns = "id, tenant_id, name, description, rules, lifecycle, created_at, updated_at"

type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rules       []Rule `json:"rules"`
}

func (s *Store) Create(ctx context.Context, req CreateRequest) (*Config, error) {
	if req.Name == "" {
		return nil, &models.ValidationError{Msg: "config name must not be empty"}
	}
	if err := ValidateRules(req.Rules); err != nil {
		return nil, err
	}

	rulesJSON, err := json.Marshal(req.Rules)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}

	var cfg Config
	err = s.db.QueryRow(ctx,
		`INSERT INTO guardrail_configs (tenant_id, name, description, rules)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+configColumns,
		tenantParam(ctx), req.Name, req.Description, rulesJSON,
	).Scan(scanTargets(&cfg)...)
	if isUniqueViolation(err) {
		return nil, &models.ConflictError{Resource: "guardrail config", Key: req.Name}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "create guardrail config", Err: err}
	}
	return &cfg, nil
}

// Get looks a config up by id within the caller's tenant only. System
// configs are reachable by name through Resolve, never by id from a
// tenant context.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Config, error) {
	var cfg Config
	err := s.db.QueryRow(ctx,
		`SELECT `+configColumns+` FROM guardrail_configs
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'`,
		id, tenantParam(ctx),
	).Scan(scanTargets(&cfg)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "guardrail config", Key: id.String()}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get guardrail config", Err: err}
	}
	return &cfg, nil
}

// Resolve finds a config by name in the caller's tenant, falling back
// to system scope when the tenant has none by that name.
func (s *Store) Resolve(ctx context.Context, name string) (*Config, error) {
	var cfg Config
	err := s.db.QueryRow(ctx,
		`SELECT `+configColumns+` FROM guardrail_configs
		 WHERE name = $1 AND (tenant_id IS NOT DISTINCT FROM $2 OR tenant_id IS NULL)
		   AND lifecycle = 'active'
		 ORDER BY tenant_id NULLS LAST LIMIT 1`,
		name, tenantParam(ctx),
	).Scan(scanTargets(&cfg)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "guardrail config", Key: name}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "resolve guardrail config", Err: err}
	}
	return &cfg, nil
}

// List returns the caller's configs plus the system presets.
func (s *Store) List(ctx context.Context) ([]Config, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+configColumns+` FROM guardrail_configs
		 WHERE (tenant_id IS NOT DISTINCT FROM $1 OR tenant_id IS NULL)
		   AND lifecycle <> 'deleted'
		 ORDER BY tenant_id NULLS LAST, name`,
		tenantParam(ctx),
	)
	if err != nil {
		return nil, &models.StoreError{Op: "list guardrail configs", Err: err}
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		var cfg Config
		if err := rows.Scan(scanTargets(&cfg)...); err != nil {
			return nil, &models.StoreError{Op: "scan guardrail config", Err: err}
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

type UpdateRequest struct {
	Description *string `json:"description,omitempty"`
	Rules       []Rule  `json:"rules,omitempty"`
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Config, error) {
	var rulesJSON []byte
	if req.Rules != nil {
		if err := ValidateRules(req.Rules); err != nil {
			return nil, err
		}
		var err error
		rulesJSON, err = json.Marshal(req.Rules)
		if err != nil {
			return nil, fmt.Errorf("encode rules: %w", err)
		}
	}

	var cfg Config
	err := s.db.QueryRow(ctx,
		`UPDATE guardrail_configs
		 SET description = COALESCE($3, description),
		     rules = COALESCE($4, rules),
		     updated_at = now()
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'
		 RETURNING `+configColumns,
		id, tenantParam(ctx), req.Description, rulesJSON,
	).Scan(scanTargets(&cfg)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "guardrail config", Key: id.String()}
	}
	if err != nil {
		return nil, &models.StoreError{Op: "update guardrail config", Err: err}
	}
	return &cfg, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE guardrail_configs SET lifecycle = 'deleted', updated_at = now()
		 WHERE id = $1 AND tenant_id IS NOT DISTINCT FROM $2 AND lifecycle <> 'deleted'`,
		id, tenantParam(ctx),
	)
	if err != nil {
		return &models.StoreError{Op: "delete guardrail config", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Resource: "guardrail config", Key: id.String()}
	}
	return nil
}

func scanTargets(cfg *Config) []any {
	return []any{
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Rules, &cfg.Lifecycle, &cfg.CreatedAt, &cfg.UpdatedAt,
	}
}

func tenantParam(ctx context.Context) *uuid.UUID {
	id := tenant.IDFromContext(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
